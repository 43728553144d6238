// Package fusion derives human-readable context text from raw device
// observations.
//
// Fuse is a pure function: given the same observations and options it
// always produces the same detail lines and summary, which is what
// makes the engine directly unit-testable. It never mutates its input
// and never touches the store.
package fusion

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/fusiond/internal/state"
)

// Fixed text emitted by the engine. Tests and the dashboard rely on
// these exact strings.
const (
	NoActiveAppLine = "No active app detected"
	NoContextLine   = "No strong perception context available."

	// noTextSentinel is the literal some camera producers send when
	// OCR ran but found nothing.
	noTextSentinel = "no_text"
)

// Options bounds the engine's output. The limits are hard caps.
type Options struct {
	// MaxOtherApps caps the "Other Apps" line.
	MaxOtherApps int

	// OCRPreviewChars caps the screen OCR preview, in characters.
	OCRPreviewChars int

	// IdleSummary is the summary used when no device reports any
	// active signal.
	IdleSummary string
}

// DefaultOptions returns the stock limits.
func DefaultOptions() Options {
	return Options{
		MaxOtherApps:    5,
		OCRPreviewChars: 200,
		IdleSummary:     "fusiond is perceiving your environment, but no active signals yet.",
	}
}

// Result is the derived text pair.
type Result struct {
	Detail  []string
	Summary string
}

// Fuse builds the detailed multi-line description and the one-line
// summary from the current raw observations.
func Fuse(devices map[string]state.Observation, opts Options) Result {
	screen := ParseScreen(payloadFor(devices, state.KindScreen))
	voice := ParseVoice(payloadFor(devices, state.KindVoice))
	camera := ParseCamera(payloadFor(devices, state.KindCamera))

	detail, hasSignal := buildDetail(screen, voice, camera, opts)
	summary := buildSummary(screen, voice, camera, opts)

	if !hasSignal {
		if screenReported(devices) {
			detail = []string{NoActiveAppLine}
		} else {
			detail = []string{NoContextLine}
		}
	}

	return Result{Detail: detail, Summary: summary}
}

// buildDetail assembles the detail lines in fixed order. hasSignal
// reports whether any device contributed real content beyond the
// mandatory active-app fallback.
func buildDetail(screen ScreenObservation, voice VoiceObservation, camera CameraObservation, opts Options) (lines []string, hasSignal bool) {
	if screen.ActiveApp != nil {
		lines = append(lines, fmt.Sprintf("Active App: %s — %s", screen.ActiveApp.Name, screen.ActiveApp.Window))
		hasSignal = true
	} else {
		lines = append(lines, NoActiveAppLine)
	}

	if others := otherApps(screen, opts.MaxOtherApps); len(others) > 0 {
		lines = append(lines, "Other Apps: "+strings.Join(others, ", "))
		hasSignal = true
	}

	if screen.Caption != "" {
		lines = append(lines, "Screen Caption: "+screen.Caption)
		hasSignal = true
	}
	if screen.ScreenText != "" {
		lines = append(lines, "Screen Text (OCR): "+truncate(screen.ScreenText, opts.OCRPreviewChars))
		hasSignal = true
	}

	if voice.Text != "" {
		lines = append(lines, fmt.Sprintf("Voice Context: %q", voice.Text))
		hasSignal = true
	}

	if line := cameraLine(camera); line != "" {
		lines = append(lines, line)
		hasSignal = true
	}

	return lines, hasSignal
}

// buildSummary assembles the one-line banner summary.
func buildSummary(screen ScreenObservation, voice VoiceObservation, camera CameraObservation, opts Options) string {
	var parts []string

	if screen.ActiveApp != nil {
		parts = append(parts, "Focused on "+screen.ActiveApp.Name)
	}
	if voice.Text != "" {
		parts = append(parts, fmt.Sprintf("heard: %q", voice.Text))
	}
	if clause := cameraClause(camera); clause != "" {
		parts = append(parts, "camera: "+clause)
	}

	if len(parts) == 0 {
		return opts.IdleSummary
	}
	return strings.Join(parts, " | ")
}

// otherApps filters the active application out of the visible-app list
// and caps the result.
func otherApps(screen ScreenObservation, max int) []string {
	activeName := ""
	if screen.ActiveApp != nil {
		activeName = screen.ActiveApp.Name
	}

	var names []string
	for _, app := range screen.Apps {
		if app.Name == activeName {
			continue
		}
		names = append(names, app.Name)
		if len(names) == max {
			break
		}
	}
	return names
}

// cameraLine renders the camera detail line. The caption schema wins
// over the legacy object list when both are present.
func cameraLine(camera CameraObservation) string {
	if camera.Caption != "" {
		line := "Camera: " + camera.Caption
		if camera.OCR != "" && camera.OCR != noTextSentinel {
			line += fmt.Sprintf(" (text: %s)", camera.OCR)
		}
		return line
	}
	if objs := dedupe(camera.Objects); len(objs) > 0 {
		return "Camera sees: " + strings.Join(objs, ", ")
	}
	return ""
}

// cameraClause renders the camera summary clause.
func cameraClause(camera CameraObservation) string {
	if camera.Caption != "" {
		return camera.Caption
	}
	if objs := dedupe(camera.Objects); len(objs) > 0 {
		return strings.Join(objs, ", ")
	}
	return ""
}

// dedupe collapses duplicates, keeping first-seen order so the output
// is deterministic for a fixed input.
func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// truncate hard-caps s at max characters (runes, not bytes).
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// payloadFor returns the payload for a device kind, or nil when the
// slot is empty.
func payloadFor(devices map[string]state.Observation, kind string) state.Payload {
	obs, ok := devices[kind]
	if !ok {
		return nil
	}
	return obs.Payload
}

// screenReported reports whether the screen watcher has delivered any
// payload at all, which distinguishes "screen watched, nothing focused"
// from "no perception signal anywhere".
func screenReported(devices map[string]state.Observation) bool {
	obs, ok := devices[state.KindScreen]
	return ok && len(obs.Payload) > 0
}
