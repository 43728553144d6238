package fusion

import (
	"github.com/fyrsmithlabs/fusiond/internal/state"
)

// Producers report schema-less JSON objects. The view types below give
// the engine typed, nil-safe access to the fields it understands while
// keeping everything else in an opaque bag, so unknown producers and
// newer payload revisions pass through ingestion untouched.

// AppRef identifies one application window reported by the screen
// watcher.
type AppRef struct {
	Name   string
	Window string
}

// ScreenObservation is the typed view of a screen watcher payload.
type ScreenObservation struct {
	// ActiveApp is nil when the watcher saw no focused application.
	ActiveApp *AppRef

	// Apps lists all visible applications, usually including the
	// active one.
	Apps []AppRef

	// Caption is a VLM description of the screen, when the producer
	// runs one.
	Caption string

	// ScreenText is raw OCR output, when the producer runs OCR.
	ScreenText string

	// Extra holds fields this view does not interpret.
	Extra map[string]any
}

// VoiceObservation is the typed view of a voice watcher payload.
type VoiceObservation struct {
	Text string

	Extra map[string]any
}

// CameraObservation is the typed view of a camera watcher payload.
// Two schemas exist in the wild: the newer caption+OCR form and the
// legacy object-list form. Caption wins when both are present.
type CameraObservation struct {
	Caption string
	OCR     string

	// Objects is the legacy detector output.
	Objects []string

	Extra map[string]any
}

// ParseScreen extracts the typed screen view. Missing or mistyped
// fields are treated as absent, never as errors.
func ParseScreen(p state.Payload) ScreenObservation {
	obs := ScreenObservation{
		Caption:    stringField(p, "caption"),
		ScreenText: stringField(p, "screen_text"),
		Extra:      residual(p, "active_app", "apps", "caption", "screen_text"),
	}

	if m, ok := p["active_app"].(map[string]any); ok {
		app := AppRef{
			Name:   stringField(m, "name"),
			Window: stringField(m, "window"),
		}
		if app.Name != "" {
			obs.ActiveApp = &app
		}
	}

	if list, ok := p["apps"].([]any); ok {
		for _, entry := range list {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			name := stringField(m, "name")
			if name == "" {
				continue
			}
			obs.Apps = append(obs.Apps, AppRef{
				Name:   name,
				Window: stringField(m, "window"),
			})
		}
	}

	return obs
}

// ParseVoice extracts the typed voice view.
func ParseVoice(p state.Payload) VoiceObservation {
	return VoiceObservation{
		Text:  stringField(p, "text"),
		Extra: residual(p, "text"),
	}
}

// ParseCamera extracts the typed camera view.
func ParseCamera(p state.Payload) CameraObservation {
	obs := CameraObservation{
		Caption: stringField(p, "caption"),
		OCR:     stringField(p, "ocr"),
		Extra:   residual(p, "caption", "ocr", "objects"),
	}

	if list, ok := p["objects"].([]any); ok {
		for _, entry := range list {
			if s, ok := entry.(string); ok && s != "" {
				obs.Objects = append(obs.Objects, s)
			}
		}
	}

	return obs
}

// stringField returns the string at key, or "" when missing or not a
// string.
func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// residual copies every field not named in known into the opaque bag.
// Returns nil when nothing is left over.
func residual(p map[string]any, known ...string) map[string]any {
	var out map[string]any
	for k, v := range p {
		skip := false
		for _, name := range known {
			if k == name {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = v
	}
	return out
}
