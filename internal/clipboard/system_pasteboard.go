package clipboard

import (
	"errors"
	"os/exec"
	"sync"
)

var errNoClipboardTool = errors.New("clipboard: no system clipboard tool found")

// SystemPasteboard adapts the host clipboard through the platform's
// command-line tools (pbpaste/pbcopy, wl-paste/wl-copy, xclip). It offers
// text only; hosts with native pasteboard bindings inject their own
// Pasteboard implementation to capture images and file URLs.
//
// The OS change counter is not reachable from these tools, so the adapter
// synthesizes one: the token advances whenever the observed text differs
// from the previous read.
type SystemPasteboard struct {
	pasteCmd []string
	copyCmd  []string

	mu       sync.Mutex
	token    uint64
	lastText string
	primed   bool
}

func NewSystemPasteboard() (*SystemPasteboard, error) {
	candidates := []struct {
		paste []string
		copy  []string
	}{
		{[]string{"pbpaste"}, []string{"pbcopy"}},
		{[]string{"wl-paste", "--no-newline"}, []string{"wl-copy"}},
		{[]string{"xclip", "-selection", "clipboard", "-o"}, []string{"xclip", "-selection", "clipboard"}},
	}
	for _, candidate := range candidates {
		if _, err := exec.LookPath(candidate.paste[0]); err == nil {
			return &SystemPasteboard{pasteCmd: candidate.paste, copyCmd: candidate.copy}, nil
		}
	}
	return nil, errNoClipboardTool
}

func (p *SystemPasteboard) ChangeToken() (uint64, error) {
	text, err := p.readText()
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.primed || text != p.lastText {
		p.token++
		p.lastText = text
		p.primed = true
	}
	return p.token, nil
}

func (p *SystemPasteboard) Read() (Representations, error) {
	text, err := p.readText()
	if err != nil {
		return Representations{}, err
	}
	return Representations{Text: text}, nil
}

// FrontmostApp is unavailable through command-line tools; the exclusion
// filter only engages for hosts that provide a native pasteboard.
func (p *SystemPasteboard) FrontmostApp() (AppInfo, error) {
	return AppInfo{}, nil
}

func (p *SystemPasteboard) Write(text string) (uint64, error) {
	cmd := exec.Command(p.copyCmd[0], p.copyCmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	if _, err := stdin.Write([]byte(text)); err != nil {
		stdin.Close()
		return 0, err
	}
	if err := stdin.Close(); err != nil {
		return 0, err
	}
	if err := cmd.Wait(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.token++
	p.lastText = text
	p.primed = true
	return p.token, nil
}

func (p *SystemPasteboard) readText() (string, error) {
	output, err := exec.Command(p.pasteCmd[0], p.pasteCmd[1:]...).Output()
	if err != nil {
		return "", err
	}
	return string(output), nil
}
