package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iddaa-lens/jobrunner/pkg/models"
)

// jobFile is the on-disk layout:
//
//	jobs:
//	  - jobName: partyJanitor
//	    params: {olderThanDays: 7}
//	    startAfter: "2016-02-29T17:05:39.000Z"
//	    daysOfWeek: ["1", "1", "1", "1", "1", "1", "1"]
//	    timeOfDay: "00:00:28.417Z"
//	    repeatMinutes: 15
type jobFile struct {
	Jobs []jobEntry `yaml:"jobs"`
}

type jobEntry struct {
	JobName       string    `yaml:"jobName"`
	Description   string    `yaml:"description"`
	Params        yaml.Node `yaml:"params"`
	StartAfter    string    `yaml:"startAfter"`
	DaysOfWeek    []string  `yaml:"daysOfWeek"`
	TimeOfDay     string    `yaml:"timeOfDay"`
	LastRun       *int64    `yaml:"lastRun"`
	RepeatMinutes int       `yaml:"repeatMinutes"`
}

// LoadYAML reads definitions from path into a new store
func LoadYAML(path string) (*Store, error) {
	defs, err := readYAML(path)
	if err != nil {
		return nil, err
	}
	return New(defs...)
}

func readYAML(path string) ([]models.JobDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	defs, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("jobs file %s: %w", path, err)
	}
	return defs, nil
}

// ParseYAML decodes job definitions. Any malformed entry fails the whole file.
func ParseYAML(data []byte) ([]models.JobDefinition, error) {
	var file jobFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}

	defs := make([]models.JobDefinition, 0, len(file.Jobs))
	seen := make(map[string]bool, len(file.Jobs))
	for i, entry := range file.Jobs {
		def, err := entry.toModel()
		if err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i, entry.JobName, err)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: duplicate job name %s", models.ErrInvalidJobDefinition, def.Name)
		}
		seen[def.Name] = true
		defs = append(defs, def)
	}
	return defs, nil
}

func (e jobEntry) toModel() (models.JobDefinition, error) {
	startAfter, err := parseStartAfter(e.StartAfter)
	if err != nil {
		return models.JobDefinition{}, fmt.Errorf("%w: startAfter: %v", models.ErrInvalidJobDefinition, err)
	}

	weekdays, err := models.ParseWeekdayMask(e.DaysOfWeek)
	if err != nil {
		return models.JobDefinition{}, err
	}

	timeOfDay := models.TimeOfDay(0)
	if e.TimeOfDay != "" {
		if timeOfDay, err = models.ParseTimeOfDay(e.TimeOfDay); err != nil {
			return models.JobDefinition{}, err
		}
	}

	params, err := paramsJSON(&e.Params)
	if err != nil {
		return models.JobDefinition{}, fmt.Errorf("%w: params: %v", models.ErrInvalidJobDefinition, err)
	}

	def := models.JobDefinition{
		Name:                  e.JobName,
		Description:           e.Description,
		Params:                params,
		ActiveAfter:           startAfter.UTC(),
		Weekdays:              weekdays,
		TimeOfDay:             timeOfDay,
		RepeatIntervalMinutes: e.RepeatMinutes,
	}
	def.LastRunAt = models.LastRunFromUnix(e.LastRun)

	return def, def.Validate()
}

// startAfterLayouts are tried in order; the second is the space-separated
// form used by older job fixtures ("2017-01-02 00:00:01Z")
var startAfterLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

func parseStartAfter(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var firstErr error
	for _, layout := range startAfterLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// paramsJSON converts the params node to JSON, keeping mapping key order.
// A string scalar holding JSON (the stored form, e.g. "{}") is used as is.
func paramsJSON(node *yaml.Node) (json.RawMessage, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		raw := []byte(strings.TrimSpace(node.Value))
		if json.Valid(raw) {
			return raw, nil
		}
	}

	var buf bytes.Buffer
	if err := writeJSON(&buf, node); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, node.Content[0])
	case yaml.AliasNode:
		return writeJSON(buf, node.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(node.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, node.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, child := range node.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		var v interface{}
		if err := node.Decode(&v); err != nil {
			return err
		}
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339Nano)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(out)
		return nil
	}
}
