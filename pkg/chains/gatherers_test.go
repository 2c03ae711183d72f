package chains

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

var clusterSpec = GatherSpec{
	Field:       "business cluster",
	Description: "The business cluster the question is about",
	Choices:     []string{"Corporate", "Ports", "Maritime"},
}

func TestGatherInfo(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantValue string
		wantReply string
	}{
		{"known choice", `{"value": "ports", "reply": ""}`, "Ports", ""},
		{"asks for it", `{"value": "", "reply": "Which cluster?"}`, "", "Which cluster?"},
		{"unknown choice gets a default question", `{"value": "Aviation", "reply": ""}`, "",
			"Could you tell me the business cluster you are interested in? The options are: 'Corporate', 'Ports', 'Maritime'."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := new(mockLLM)
			var got *interfaces.GenerateOptions
			llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) {
					got = resolve(args.Get(2).([]interfaces.GenerateOption))
				}).
				Return(tt.output, nil)

			out, err := newTestChains(llm).GatherInfo(context.Background(), testInput(), clusterSpec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, out.Value)
			assert.Equal(t, tt.wantReply, out.Reply)
			assert.Equal(t, tt.wantValue != "", out.Done())

			assert.Equal(t, "Gathered", got.ResponseFormat.Name)
			assert.Contains(t, got.SystemMessage, "business cluster")
			assert.Contains(t, got.SystemMessage, "'Ports'")
			assert.Len(t, got.Messages, 2)
		})
	}
}

func TestGatherSoWType(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"value": "manpower supply", "reply": ""}`, nil)

	out, err := newTestChains(llm).GatherSoWType(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, SoWManpower, out.Value)
}

func fullDetails() SoWDetails {
	return SoWDetails{
		Preamble:                "Port expansion at the north terminal",
		GeneralSoW:              "Design consultancy",
		DescriptionOfServices:   "Concept and detailed design",
		CodesStandards:          "BS EN 1990",
		DrawingsSpecifications:  "AutoCAD drawings",
		ReviewMeetingsReporting: "Weekly meetings",
		TrainingRequirements:    "None",
		InterfaceRequirements:   "Coordinate with the terminal operator",
		Deliverables:            "Design report",
		Exclusions:              "Construction works",
		OptionalScope:           "Site supervision",
		FacilitiesByEmployer:    "Site office",
	}
}

func TestGatherSoWDetails(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		body, err := json.Marshal(sowDetailsReply{Complete: true, Details: fullDetails()})
		require.NoError(t, err)
		llm := new(mockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(string(body), nil)

		details, reply, err := newTestChains(llm).GatherSoWDetails(context.Background(), testInput())
		require.NoError(t, err)
		require.NotNil(t, details)
		assert.Empty(t, reply)
		sections := details.Sections()
		require.Len(t, sections, 12)
		assert.Equal(t, DocumentSection{Heading: "Deliverables", Body: "Design report"}, sections[8])
	})

	t.Run("claimed complete with a blank section", func(t *testing.T) {
		d := fullDetails()
		d.Exclusions = " "
		body, err := json.Marshal(sowDetailsReply{Complete: true, Details: d})
		require.NoError(t, err)
		llm := new(mockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(string(body), nil)

		details, reply, err := newTestChains(llm).GatherSoWDetails(context.Background(), testInput())
		require.NoError(t, err)
		assert.Nil(t, details)
		assert.Equal(t, "Could you share the remaining details of the scope of work?", reply)
	})

	t.Run("incomplete", func(t *testing.T) {
		body, err := json.Marshal(sowDetailsReply{Reply: "What are the deliverables?"})
		require.NoError(t, err)
		llm := new(mockLLM)
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(string(body), nil)

		details, reply, err := newTestChains(llm).GatherSoWDetails(context.Background(), testInput())
		require.NoError(t, err)
		assert.Nil(t, details)
		assert.Equal(t, "What are the deliverables?", reply)
	})
}
