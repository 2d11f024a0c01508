package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	notificationdomain "medconnect/client/internal/notification/domain"
)

// terminalPrompter asks on the terminal whether to log out after a security alert.
// Prompts are shown one at a time.
type terminalPrompter struct {
	mu    sync.Mutex
	out   io.Writer
	lines chan string
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	p := &terminalPrompter{out: out, lines: make(chan string)}
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
		close(p.lines)
	}()
	return p
}

func (p *terminalPrompter) PromptSecurityAlert(ctx context.Context, n notificationdomain.Notification) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s\n%s\n\nLog out now? [y/N] ", n.Title, n.Message)
	select {
	case <-ctx.Done():
		return false
	case line, ok := <-p.lines:
		if !ok {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
