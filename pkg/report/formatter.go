package report

import (
	"fmt"
	"strings"
	"time"
)

// Formatter converts a Summary to text.
type Formatter interface {
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator translates headings and labels, e.g. with l10n.T.
func WithTranslator(fn func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = fn
	}
}

// WithVersion adds the tool version to the footer.
func WithVersion(v string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = v
	}
}

// NewMarkdownFormatter creates a formatter with untranslated English labels.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{translate: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Benchmark Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Video"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row := func(k, v string) { fmt.Fprintf(&b, "| %s | %s |\n", t(k), v) }
	row("File", s.Video.Path)
	if s.Video.Codec != "" {
		row("Codec", s.Video.Codec)
	}
	row("Resolution", fmt.Sprintf("%dx%d", s.Video.Width, s.Video.Height))
	row("Frame Rate", fmt.Sprintf("%.2f fps", s.Video.FPS))
	row("Frames", fmt.Sprintf("%d", s.Video.FrameCount))
	row("Duration", fmt.Sprintf("%.2f s", s.Video.Duration))
	if s.Video.FileSize > 0 {
		row("File Size", formatBytes(s.Video.FileSize))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row("Engine", s.Settings.Engine)
	row("Batch Size", fmt.Sprintf("%d", s.Settings.BatchSize))
	row("Internal Batch", fmt.Sprintf("%d", s.Settings.InternalBatch))
	row("Queue Capacity", fmt.Sprintf("%d", s.Settings.QueueCapacity))
	if s.Settings.PoolSize > 0 {
		row("Pool Size", fmt.Sprintf("%d", s.Settings.PoolSize))
	}
	row("Format", s.Settings.Format)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Results"))
	fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n|---|---:|---:|---:|---:|---:|\n",
		t("Mode"), t("Frames"), t("Time"), t("FPS"), t("ms/frame"), t("Speed"))
	for _, r := range s.Results {
		if r.Err != nil {
			fmt.Fprintf(&b, "| %s | %d | - | - | - | %s: %v |\n", r.Mode, r.Frames, t("Failed"), r.Err)
			continue
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %.1f | %.2f | %.1fx |\n",
			r.Mode, r.Frames, formatDuration(r.Elapsed), r.FPS(), r.MsPerFrame(), r.Speedup(s.Video.FPS))
	}
	b.WriteString("\n")

	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format(time.RFC3339))
	if f.version != "" {
		footer += " · viteo " + f.version
	}
	fmt.Fprintf(&b, "---\n\n%s\n", footer)
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%d ms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2f s", d.Seconds())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 2; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
