package collect

import (
	"bytes"
	"encoding/json"

	"github.com/yeleman/anam-desktop/internal/domain"
	"github.com/yeleman/anam-desktop/internal/fieldmap"
	"github.com/yeleman/anam-desktop/internal/survey"
)

// Survey sex codes counted in dataset summaries
const (
	sexMale   = "masculin"
	sexFemale = "feminin"
)

// Text decodes JSON strings and numbers alike, identifiers are served as either
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

// Dataset survey submissions of a collect
type Dataset struct {
	Targets []survey.Record `json:"targets"`
}

// Collect one survey campaign as served by the dataset service
type Collect struct {
	ID             Text    `json:"id"`
	Cercle         string  `json:"cercle"`
	Commune        string  `json:"commune"`
	OnaFormID      Text    `json:"ona_form_id"`
	StartedOn      string  `json:"started_on"`
	NbSubmissions  int     `json:"nb_submissions"`
	NbNonIndigents int     `json:"nb_non_indigents"`
	Archived       bool    `json:"archived"`
	Dataset        Dataset `json:"dataset"`
}

// Name human readable collect name
func (c *Collect) Name() string {
	return "Enquête sociale de " + c.Commune + ", cercle de " + c.Cercle
}

// Eligible returns the targets flagged indigent, in dataset order
func (c *Collect) Eligible() []survey.Record {
	out := make([]survey.Record, 0, len(c.Dataset.Targets))
	for _, t := range c.Dataset.Targets {
		if t.Eligible() {
			out = append(out, t)
		}
	}
	return out
}

// NbMale eligible targets whose head is a man
func (c *Collect) NbMale() int { return c.countSex(sexMale) }

// NbFemale eligible targets whose head is a woman
func (c *Collect) NbFemale() int { return c.countSex(sexFemale) }

func (c *Collect) countSex(code string) int {
	path := fieldmap.MustDefault().Path(domain.RoleHead, fieldmap.Sex)
	n := 0
	for _, t := range c.Eligible() {
		if t.Text(path) == code {
			n++
		}
	}
	return n
}
