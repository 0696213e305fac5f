package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/spigell/talent-ranker/internal/ranking"
)

// CandidatesKey is the top-level key holding the candidate list.
const CandidatesKey = "candidates"

var validate = validator.New()

// jobRecord carries the boundary rules for a job file.
type jobRecord struct {
	Title              string   `mapstructure:"title" validate:"required"`
	RequiredSkills     []string `mapstructure:"required_skills"`
	RequiredExperience float64  `mapstructure:"required_experience" validate:"gte=0"`
	RequiredEducation  string   `mapstructure:"required_education"`
	Location           string   `mapstructure:"location"`
	Description        string   `mapstructure:"description" validate:"required"`
}

// Candidates is a decoded candidate file.
type Candidates struct {
	Items []*ranking.Candidate
	// Issues lists records that were only partly decoded. They stay in Items.
	Issues []Issue
}

// Issue describes a problem with one candidate record.
type Issue struct {
	Index       int
	CandidateID string
	Err         error
}

func (i Issue) Error() string {
	return fmt.Sprintf("candidate %d (%s): %v", i.Index, i.CandidateID, i.Err)
}

// Len returns the number of candidates.
func (c *Candidates) Len() int {
	return len(c.Items)
}

// LoadJob reads a job from a JSON, YAML or TOML file and validates it.
func LoadJob(path string) (*ranking.Job, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}

	return DecodeJob(v.AllSettings())
}

// DecodeJob decodes and validates a job from a generic map.
func DecodeJob(raw map[string]any) (*ranking.Job, error) {
	var record jobRecord
	if err := decode(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: decode job: %w", ranking.ErrInvalidInput, err)
	}

	if err := validate.Struct(record); err != nil {
		return nil, fmt.Errorf("%w: %w", ranking.ErrInvalidInput, describeValidation(err))
	}

	return &ranking.Job{
		Title:              strings.TrimSpace(record.Title),
		RequiredSkills:     record.RequiredSkills,
		RequiredExperience: record.RequiredExperience,
		RequiredEducation:  record.RequiredEducation,
		Location:           record.Location,
		Description:        record.Description,
	}, nil
}

// LoadCandidates reads the candidate list stored under the "candidates" key.
func LoadCandidates(path string) (*Candidates, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}

	raw := v.Get(CandidatesKey)
	if raw == nil {
		return nil, fmt.Errorf("%w: %s has no %q list", ranking.ErrInvalidInput, path, CandidatesKey)
	}

	switch records := raw.(type) {
	case []any:
		return DecodeCandidates(records), nil
	case []map[string]any:
		generic := make([]any, len(records))
		for i, record := range records {
			generic[i] = record
		}
		return DecodeCandidates(generic), nil
	default:
		return nil, fmt.Errorf("%w: %q in %s must be a list", ranking.ErrInvalidInput, CandidatesKey, path)
	}
}

// DecodeCandidates decodes each record on its own. A record that fails keeps
// whatever fields did decode, and the failure is reported in Issues.
// Missing and duplicate IDs are replaced with ones derived from the record's
// position and content, so the same file yields the same refs on every load.
func DecodeCandidates(records []any) *Candidates {
	out := &Candidates{Items: make([]*ranking.Candidate, 0, len(records))}
	seen := make(map[string]struct{}, len(records))

	for idx, record := range records {
		candidate := &ranking.Candidate{}
		err := decode(record, candidate)

		candidate.ID = strings.TrimSpace(candidate.ID)
		if _, dup := seen[candidate.ID]; dup {
			err = errors.Join(err, fmt.Errorf("duplicate id %q replaced", candidate.ID))
			candidate.ID = ""
		}
		if candidate.ID == "" {
			candidate.ID = derivedID(idx, candidate)
		}
		seen[candidate.ID] = struct{}{}

		if candidate.TotalExperience < 0 {
			err = errors.Join(err, fmt.Errorf("negative total_experience %v", candidate.TotalExperience))
		}

		if err != nil {
			out.Issues = append(out.Issues, Issue{Index: idx, CandidateID: candidate.ID, Err: err})
		}
		out.Items = append(out.Items, candidate)
	}

	return out
}

func derivedID(idx int, c *ranking.Candidate) string {
	key := fmt.Sprintf("%d|%s|%s|%s", idx, c.Name, strings.Join(c.Skills, ","), c.Location)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func read(path string) (*viper.Viper, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return v, nil
}

func decode(input, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("job validation: %s", strings.Join(msgs, ", "))
}
