package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pushcenter"
	pkgerrors "github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
)

const sample = `{
  "type": "CREATE",
  "entityType": "domain",
  "entities": [{"ID": "d1", "name": "prod"}, {"ID": "d2", "name": "dev"}]
}`

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"json", "YAML", "text"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseFormat("table")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidationError(err))
}

func TestDetectFormat_Explicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
	assert.Equal(t, FormatJSON, DetectFormat("json"))
}

func TestEventPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf, FormatJSON)

	require.NoError(t, p.OnEvent(events.NewEvent([]byte(sample))))
	require.NoError(t, p.OnEvent(events.NewEvent([]byte(`[1, 2]`))))

	assert.Equal(t,
		`{"type":"CREATE","entityType":"domain","entities":[{"ID":"d1","name":"prod"},{"ID":"d2","name":"dev"}]}`+"\n"+
			`[1,2]`+"\n",
		buf.String())
	assert.Equal(t, 2, p.Count())
}

func TestEventPrinter_YAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf, FormatYAML)
	require.NoError(t, p.OnEvent(events.NewEvent([]byte(sample))))

	out := buf.String()
	require.True(t, len(out) > 4)
	assert.Equal(t, "---\n", out[:4])

	var doc struct {
		Type       string `yaml:"type"`
		EntityType string `yaml:"entityType"`
		Entities   []struct {
			ID string `yaml:"ID"`
		} `yaml:"entities"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out[4:]), &doc))
	assert.Equal(t, "CREATE", doc.Type)
	assert.Equal(t, "domain", doc.EntityType)
	require.Len(t, doc.Entities, 2)
	assert.Equal(t, "d2", doc.Entities[1].ID)
}

func TestEventPrinter_Text(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"full", sample, "Create domain (2 entities)"},
		{"single entity", `{"type":"DELETE","entityType":"vport","entities":[{}]}`, "Delete vport (1 entity)"},
		{"no entities", `{"type":"UPDATE","entityType":"enterprise"}`, "Update enterprise"},
		{"no header", `{"x":1}`, `Event {"x":1}`},
		{"not an object", `"ping"`, `Event "ping"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewEventPrinter(&buf, FormatText).OnEvent(events.NewEvent([]byte(tt.payload))))
			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

// failingWriter always fails.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEventPrinter_WriteError(t *testing.T) {
	p := NewEventPrinter(failingWriter{}, FormatJSON)
	assert.Error(t, p.OnEvent(events.NewEvent([]byte(`{}`))))
	assert.Equal(t, 0, p.Count())
}

func TestStatusTable(t *testing.T) {
	var buf bytes.Buffer
	err := StatusTable(&buf, pushcenter.Status{
		State:     pushcenter.StateIdle,
		URL:       "https://vsd.invalid:8443/nuage/api/v6",
		Cursor:    "B",
		Events:    3,
		Resets:    1,
		LastError: "endpoint unavailable",
	})
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{"idle", "vsd.invalid", "unavailable"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Last success")
}
