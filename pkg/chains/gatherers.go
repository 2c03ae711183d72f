package chains

import (
	"context"
	"fmt"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/structuredoutput"
)

// Scope of work types
const (
	SoWConsultancy = "Consultancy Services"
	SoWGeneral     = "General Services"
	SoWManpower    = "Manpower Supply"
)

// SoWTypes lists the scope of work types the gatherer accepts
var SoWTypes = []string{SoWConsultancy, SoWGeneral, SoWManpower}

// GatherSpec describes one detail an agent collects before answering, e.g.
// the business cluster a finance question is about
type GatherSpec struct {
	Field       string   `yaml:"field"`
	Description string   `yaml:"description"`
	Choices     []string `yaml:"choices"`
}

// match returns the choice equal to value ignoring case, or "" when value
// is not one of the choices. A spec without choices accepts any value.
func (g GatherSpec) match(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(g.Choices) == 0 {
		return value
	}
	for _, c := range g.Choices {
		if strings.EqualFold(c, value) {
			return c
		}
	}
	return ""
}

func quoteChoices(choices []string) string {
	quoted := make([]string, len(choices))
	for i, c := range choices {
		quoted[i] = "'" + c + "'"
	}
	return strings.Join(quoted, ", ")
}

// Gathered is the outcome of a gathering turn: either Value is known or
// Reply asks the user for it
type Gathered struct {
	Value string `json:"value" description:"The gathered value, empty when it cannot be discerned from the conversation"`
	Reply string `json:"reply" description:"A short question asking the user to clarify, empty when the value is known"`
}

var gatheredFormat = structuredoutput.NewResponseFormat(Gathered{})

// Done reports whether the value was gathered
func (g Gathered) Done() bool {
	return g.Value != ""
}

func (c *Chains) gather(ctx context.Context, in Input, spec GatherSpec, name string) (Gathered, error) {
	vars := in.vars()
	vars["field"] = spec.Field
	vars["field_description"] = spec.Description
	vars["choices"] = quoteChoices(spec.Choices)
	if len(spec.Choices) == 0 {
		vars["choices"] = "any value given by the user"
	}

	var out Gathered
	err := c.structured(ctx, helperProfile, Render(infoGathererPrompt, vars), Render(gatherTurn, vars), in.History, gatheredFormat, &out)
	if err != nil {
		return Gathered{}, fmt.Errorf("%s: %w", name, err)
	}
	out.Value = spec.match(out.Value)
	if !out.Done() && strings.TrimSpace(out.Reply) == "" {
		out.Reply = fmt.Sprintf("Could you tell me the %s you are interested in? The options are: %s.", spec.Field, quoteChoices(spec.Choices))
	}
	c.logger.Debug(ctx, "Gathered", map[string]interface{}{"gatherer": name, "field": spec.Field, "value": out.Value})
	return out, nil
}

// GatherInfo collects the detail described by spec from the conversation
func (c *Chains) GatherInfo(ctx context.Context, in Input, spec GatherSpec) (Gathered, error) {
	return c.gather(ctx, in, spec, "info gatherer")
}

var sowTypeSpec = GatherSpec{
	Field:       "scope of work type",
	Description: "The type of scope of work the user would like to fill in",
	Choices:     SoWTypes,
}

// GatherSoWType finds out which scope of work the user wants to draft
func (c *Chains) GatherSoWType(ctx context.Context, in Input) (Gathered, error) {
	return c.gather(ctx, in, sowTypeSpec, "sow type gatherer")
}

// SoWDetails are the sections of a consultancy services scope of work
type SoWDetails struct {
	Preamble                string `json:"preamble" description:"Brief high-level introduction about the project such as location, objectives and parties involved in execution"`
	GeneralSoW              string `json:"general_sow" description:"Overview of the general scope of services to be performed"`
	DescriptionOfServices   string `json:"description_of_services" description:"Detailed description of the actual services to be performed"`
	CodesStandards          string `json:"codes_standards" description:"Codes and standards to ensure compliance with the project requirements"`
	DrawingsSpecifications  string `json:"drawings_specifications" description:"Drawings and specifications to ensure compliance with the project requirements"`
	ReviewMeetingsReporting string `json:"review_meetings_reporting" description:"Review and approval processes, meetings and reporting requirements"`
	TrainingRequirements    string `json:"training_requirements" description:"Training to be provided under the contract"`
	InterfaceRequirements   string `json:"interface_requirements" description:"Interfaces the contractor must manage, including site access and interference with other contractors"`
	Deliverables            string `json:"deliverables" description:"Exhaustive list of deliverables during execution and upon completion"`
	Exclusions              string `json:"exclusions" description:"Items excluded from the scope that could be misconstrued as part of it"`
	OptionalScope           string `json:"optional_scope" description:"Optional scope items that may be instructed later at the Employer's discretion"`
	FacilitiesByEmployer    string `json:"facilities_by_employer" description:"Facilities and support services provided by the Employer"`
}

// Sections returns the headings and bodies in template order
func (d SoWDetails) Sections() []DocumentSection {
	return []DocumentSection{
		{Heading: "Preamble", Body: d.Preamble},
		{Heading: "General Scope of Work", Body: d.GeneralSoW},
		{Heading: "Description of Services", Body: d.DescriptionOfServices},
		{Heading: "Codes and Standards", Body: d.CodesStandards},
		{Heading: "Drawings and Specifications", Body: d.DrawingsSpecifications},
		{Heading: "Review Meetings and Reporting", Body: d.ReviewMeetingsReporting},
		{Heading: "Training Requirements", Body: d.TrainingRequirements},
		{Heading: "Interface Requirements", Body: d.InterfaceRequirements},
		{Heading: "Deliverables", Body: d.Deliverables},
		{Heading: "Exclusions", Body: d.Exclusions},
		{Heading: "Optional Scope", Body: d.OptionalScope},
		{Heading: "Facilities by Employer", Body: d.FacilitiesByEmployer},
	}
}

// Complete reports whether every section is filled in
func (d SoWDetails) Complete() bool {
	for _, s := range d.Sections() {
		if strings.TrimSpace(s.Body) == "" {
			return false
		}
	}
	return true
}

type sowDetailsReply struct {
	Complete bool       `json:"complete" description:"True only when every section could be filled in from the conversation"`
	Details  SoWDetails `json:"details" description:"The sections gathered so far"`
	Reply    string     `json:"reply" description:"A short message asking the user for the missing sections, empty when complete"`
}

var sowDetailsFormat = structuredoutput.NewResponseFormat(sowDetailsReply{})

// GatherSoWDetails collects the sections of a consultancy services SoW.
// Details is nil until every section is known; Reply then asks for the rest.
func (c *Chains) GatherSoWDetails(ctx context.Context, in Input) (*SoWDetails, string, error) {
	vars := in.vars()
	var out sowDetailsReply
	err := c.structured(ctx, longHelperProfile, Render(sowDetailsGathererPrompt, vars), Render(gatherTurn, vars), in.History, sowDetailsFormat, &out)
	if err != nil {
		return nil, "", fmt.Errorf("sow details gatherer: %w", err)
	}
	if out.Complete && out.Details.Complete() {
		return &out.Details, "", nil
	}
	reply := strings.TrimSpace(out.Reply)
	if reply == "" {
		reply = "Could you share the remaining details of the scope of work?"
	}
	return nil, reply, nil
}
