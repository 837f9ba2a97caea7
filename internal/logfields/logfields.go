package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyBlockID    = "block_id"
	KeyOutputID   = "output_id"
	KeyLanguage   = "language"
	KeyLine       = "line"
	KeySection    = "section"
	KeyState      = "state"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyStatus     = "status"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func BlockID(id string) slog.Attr     { return slog.String(KeyBlockID, id) }
func OutputID(id string) slog.Attr    { return slog.String(KeyOutputID, id) }
func Language(l string) slog.Attr     { return slog.String(KeyLanguage, l) }
func Line(n int) slog.Attr            { return slog.Int(KeyLine, n) }
func Section(s string) slog.Attr      { return slog.String(KeySection, s) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
