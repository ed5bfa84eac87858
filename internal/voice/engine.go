package voice

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"voice-beyond/companion/pkg/logger"
)

const defaultWordsPerMinute = 175

// CommandEngine drives the platform speech command: say on macOS, espeak-ng or espeak elsewhere.
type CommandEngine struct {
	bin  string
	kind string
	log  *logger.Logger

	mu       sync.Mutex
	voices   []Voice
	loaded   bool
	onChange func()
	current  *exec.Cmd
}

// NewCommandEngine finds a synthesizer binary and starts loading its voices in the background.
// kind is one of auto, say, espeak.
func NewCommandEngine(kind string, log *logger.Logger) (*CommandEngine, error) {
	var candidates []string
	switch kind {
	case "", "auto":
		if runtime.GOOS == "darwin" {
			candidates = []string{"say"}
		} else {
			candidates = []string{"espeak-ng", "espeak"}
		}
	case "say":
		candidates = []string{"say"}
	case "espeak":
		candidates = []string{"espeak-ng", "espeak"}
	default:
		return nil, fmt.Errorf("unknown voice engine %q", kind)
	}

	for _, bin := range candidates {
		path, err := exec.LookPath(bin)
		if err != nil {
			continue
		}
		e := &CommandEngine{
			bin:  path,
			kind: engineKind(bin),
			log:  log.WithComponent("speech"),
		}
		go e.loadVoices()
		return e, nil
	}
	return nil, ErrEngineUnavailable
}

func engineKind(bin string) string {
	if bin == "say" {
		return "say"
	}
	return "espeak"
}

// Voices returns the loaded voice list; empty until loading finishes.
func (e *CommandEngine) Voices() []Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Voice, len(e.voices))
	copy(out, e.voices)
	return out
}

// SetVoicesChangedHandler registers fn to run once when voices finish loading.
// If they already have, fn is not called.
func (e *CommandEngine) SetVoicesChangedHandler(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loaded {
		return
	}
	e.onChange = fn
}

// Cancel kills the utterance in progress, if any.
func (e *CommandEngine) Cancel() {
	e.mu.Lock()
	cmd := e.current
	e.current = nil
	e.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// Speak starts speaking and returns without waiting for the utterance to end.
func (e *CommandEngine) Speak(u Utterance) error {
	cmd := exec.Command(e.bin, speakArgs(e.kind, u)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.bin, err)
	}

	e.mu.Lock()
	e.current = cmd
	e.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		e.mu.Lock()
		if e.current == cmd {
			e.current = nil
		}
		e.mu.Unlock()
	}()
	return nil
}

func (e *CommandEngine) loadVoices() {
	var listArgs []string
	if e.kind == "say" {
		listArgs = []string{"-v", "?"}
	} else {
		listArgs = []string{"--voices"}
	}

	out, err := exec.Command(e.bin, listArgs...).Output()
	var voices []Voice
	if err != nil {
		e.log.Warn("could not list voices", "error", err.Error())
	} else if e.kind == "say" {
		voices = parseSayVoices(out)
	} else {
		voices = parseEspeakVoices(out)
	}
	if len(voices) == 0 {
		// speak with the engine default rather than waiting forever
		voices = []Voice{{Name: "default"}}
	}

	e.mu.Lock()
	e.voices = voices
	e.loaded = true
	fn := e.onChange
	e.onChange = nil
	e.mu.Unlock()

	e.log.Debug("voices loaded", "count", len(voices))
	if fn != nil {
		fn()
	}
}

func speakArgs(kind string, u Utterance) []string {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	wpm := strconv.Itoa(int(defaultWordsPerMinute * rate))

	var args []string
	if kind == "say" {
		// say has no pitch flag
		if u.Voice != nil && u.Voice.ID != "" {
			args = append(args, "-v", u.Voice.ID)
		}
		return append(args, "-r", wpm, u.Text)
	}

	pitch := u.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	if u.Voice != nil && u.Voice.ID != "" {
		args = append(args, "-v", u.Voice.ID)
	}
	// espeak pitch runs 0-99 with 50 as normal
	return append(args, "-p", strconv.Itoa(int(50*pitch)), "-s", wpm, u.Text)
}

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// parseSayVoices reads `say -v ?` output: "Daniel   en_GB   # Hello, my name is Daniel."
func parseSayVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := sayVoiceLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, Voice{ID: name, Name: name, Lang: m[2]})
	}
	return voices
}

// parseEspeakVoices reads `espeak --voices` output. The gender column is
// folded into the name so the selection heuristic can see it.
func parseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		lang, ageGender, name := fields[1], fields[2], fields[3]

		gender := ""
		switch {
		case strings.HasSuffix(ageGender, "/M"):
			gender = " male"
		case strings.HasSuffix(ageGender, "/F"):
			gender = " female"
		}
		voices = append(voices, Voice{ID: lang, Name: name + gender, Lang: lang})
	}
	return voices
}
