package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"sync"

	"voice-beyond/companion/pkg/logger"
)

// Player plays a remote audio resource. Play returns once playback has started;
// Stop ends whatever is still playing.
type Player interface {
	Play(ctx context.Context, audioURL string) error
	Stop()
}

type playerCommand struct {
	bin  string
	args func(file string) []string
}

var playerCommands = map[string]playerCommand{
	"mpv":    {"mpv", func(f string) []string { return []string{"--no-terminal", "--really-quiet", f} }},
	"afplay": {"afplay", func(f string) []string { return []string{f} }},
	"aplay":  {"aplay", func(f string) []string { return []string{"-q", f} }},
	"paplay": {"paplay", func(f string) []string { return []string{f} }},
}

var playerPreference = []string{"mpv", "afplay", "aplay", "paplay"}

// CommandPlayer downloads audio to a temp file and hands it to a local player binary.
type CommandPlayer struct {
	client *http.Client
	cmd    playerCommand
	path   string
	log    *logger.Logger

	mu      sync.Mutex
	current *exec.Cmd
}

// NewCommandPlayer picks a player binary. kind is auto or one of mpv, afplay, aplay, paplay.
func NewCommandPlayer(kind string, client *http.Client, log *logger.Logger) (*CommandPlayer, error) {
	if client == nil {
		client = http.DefaultClient
	}

	names := playerPreference
	if kind != "" && kind != "auto" {
		if _, ok := playerCommands[kind]; !ok {
			return nil, fmt.Errorf("unknown audio player %q", kind)
		}
		names = []string{kind}
	}

	for _, name := range names {
		cmd := playerCommands[name]
		if p, err := exec.LookPath(cmd.bin); err == nil {
			return &CommandPlayer{client: client, cmd: cmd, path: p, log: log.WithComponent("player")}, nil
		}
	}
	return nil, ErrPlayerUnavailable
}

// Play downloads audioURL and starts the player; the temp file is removed when playback ends.
func (p *CommandPlayer) Play(ctx context.Context, audioURL string) error {
	file, err := download(ctx, p.client, audioURL)
	if err != nil {
		return err
	}

	p.Stop()
	cmd := exec.Command(p.path, p.cmd.args(file)...)
	if err := cmd.Start(); err != nil {
		os.Remove(file)
		return fmt.Errorf("start %s: %w", p.cmd.bin, err)
	}
	p.mu.Lock()
	p.current = cmd
	p.mu.Unlock()

	go func() {
		if err := cmd.Wait(); err != nil {
			p.log.Debug("playback ended with error", "error", err.Error())
		}
		p.mu.Lock()
		if p.current == cmd {
			p.current = nil
		}
		p.mu.Unlock()
		os.Remove(file)
	}()
	return nil
}

// Stop kills the running player, if any.
func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	cmd := p.current
	p.current = nil
	p.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func download(ctx context.Context, client *http.Client, audioURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", fmt.Errorf("create audio request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "voicebeyond-*"+audioExt(audioURL))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func audioExt(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil {
		return ".wav"
	}
	if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".wav"
}
