package obs

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr when they carry
// level=error (or higher), in either the text or the JSON format, and to
// stdout otherwise, so container log collectors can treat the two streams
// differently.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (n int, err error) {
	for _, marker := range []string{
		"level=error", "level=fatal", "level=panic",
		`"level":"error"`, `"level":"fatal"`, `"level":"panic"`,
	} {
		if bytes.Contains(p, []byte(marker)) {
			return os.Stderr.Write(p)
		}
	}
	return os.Stdout.Write(p)
}

// Logger is the package-level logger used by call sites that don't carry
// their own ContextLogger (mainly process bootstrap, before config is read).
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
