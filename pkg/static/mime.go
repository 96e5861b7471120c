package static

import (
	"path/filepath"
	"strings"

	"github.com/scitran/nims-gateway/pkg/types"
)

// Overrides forces content types by file extension regardless of what Go's
// mime tables would infer. The stock set covers the scan formats the
// application serves: GE P-files (.7), diffusion gradient tables
// (.bvec/.bval), DICOM (.dcm), and raw physio recordings (.dat).
type Overrides struct {
	byExt map[string]string
}

func NewOverrides(cfg types.MIMEConfig) *Overrides {
	byExt := make(map[string]string, len(cfg.Overrides))
	for ext, contentType := range cfg.Overrides {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		byExt[strings.ToLower(ext)] = contentType
	}
	return &Overrides{byExt: byExt}
}

// TypeByName returns the forced content type for a filename, if any.
func (o *Overrides) TypeByName(name string) (string, bool) {
	if o == nil {
		return "", false
	}
	contentType, ok := o.byExt[strings.ToLower(filepath.Ext(name))]
	return contentType, ok
}
