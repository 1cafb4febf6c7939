package charts

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"

	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/pkg/errors"
)

// Artifact file names.
const (
	FileGlobalMap         = "global_map.html"
	FileCorrelation       = "corr.html"
	FilePathogenHost      = "Pathogen_host_dist.html"
	FileFeatureImportance = "feature_importance.html"
)

// Climate metrics selectable on the distribution and mismatch pages.
const (
	MetricTemperature = "temperature"
	MetricRainfall    = "rainfall"
)

// Metrics lists the selectable climate metrics.
var Metrics = []string{MetricTemperature, MetricRainfall}

// MismatchFile names the anomaly-versus-incidence chart of a system type,
// e.g. Ag_tempinc.html.
func MismatchFile(system, metric string) string {
	prefix := "Ag"
	if system == dataset.SystemWild {
		prefix = "Wd"
	}
	if metric == MetricRainfall {
		return prefix + "_raininc.html"
	}
	return prefix + "_tempinc.html"
}

// ViolinFile names the per-pathogen anomaly spread chart.
func ViolinFile(metric string) string {
	if metric == MetricRainfall {
		return "Violin_Rain_pathost.html"
	}
	return "Violin_Temp_pathost.html"
}

// DistributionFile names the anomaly histogram chart.
func DistributionFile(metric string) string {
	if metric == MetricRainfall {
		return "precip_pathogen_distributions.html"
	}
	return "temp_pathogen_distributions.html"
}

// ComparisonFile names the model comparison chart of a system type.
func ComparisonFile(system string) string {
	return "model_comparison_" + system + ".html"
}

var fragmentTmpl = template.Must(template.New("fragment").Parse(
	`<figure class="chart" data-artifact="{{.Name}}">
<figcaption>{{.Title}}</figcaption>
{{.SVG}}
</figure>
`))

// Fragment encodes p as SVG at the theme size and wraps it in a figure.
func Fragment(p *plot.Plot, t Theme, name string) ([]byte, error) {
	wt, err := p.WriterTo(t.Width, t.Height, "svg")
	if err != nil {
		return nil, errors.Wrap(err, "svg canvas")
	}
	var svg bytes.Buffer
	if _, err := wt.WriteTo(&svg); err != nil {
		return nil, errors.Wrap(err, "encode svg")
	}
	// Drop the XML prolog so the SVG can be inlined into a page.
	body := svg.String()
	if i := strings.Index(body, "<svg"); i > 0 {
		body = body[i:]
	}

	var out bytes.Buffer
	err = fragmentTmpl.Execute(&out, struct {
		Name, Title string
		SVG         template.HTML
	}{name, p.Title.Text, template.HTML(body)})
	if err != nil {
		return nil, errors.Wrap(err, "render fragment")
	}
	return out.Bytes(), nil
}

// WriteFragment renders p and writes it to dir/name.
func WriteFragment(p *plot.Plot, t Theme, dir, name string) (string, error) {
	b, err := Fragment(p, t, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "mkdir images dir")
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}
