package validator

import (
	"fmt"
	"io"
	"strings"

	"nfvpe/derive-params/compute"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/ryanuber/columnize"
)

type Report struct {
	Host       string
	Derivation *compute.Derivation
	Rows       []Row
}

// Err collects the failed verdicts, nil when every row is fine.
func (report *Report) Err() error {
	var result *multierror.Error
	for _, row := range report.Rows {
		if row.Ok {
			continue
		}
		message := strings.Join(strings.Fields(row.Message), " ")
		result = multierror.Append(result, fmt.Errorf("%s: %s", row.Parameter, message))
	}
	return result.ErrorOrNil()
}

// Table renders the report as aligned columns. Verdicts spanning several
// lines continue on lines of their own below the parameter.
func (report *Report) Table() string {
	lines := []string{"Parameters|Deployment Value|Hiera Data|Validation Messages"}
	for _, row := range report.Rows {
		deployed := row.Deployed
		if deployed == "" {
			deployed = "<not configured>"
		}
		hiera := row.Hiera
		if hiera == "" {
			hiera = "<not configured>"
		}
		messages := strings.Split(strings.TrimRight(row.Message, "\n"), "\n")
		lines = append(lines, strings.Join([]string{row.Parameter, deployed, hiera, strings.TrimSpace(messages[0])}, "|"))
		for _, message := range messages[1:] {
			lines = append(lines, "| | |"+strings.TrimSpace(message))
		}
	}
	return columnize.Format(lines, columnize.DefaultConfig())
}

func (report *Report) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Validation of node %s:\n%s\n", report.Host, report.Table())
	return err
}
