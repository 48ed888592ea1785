package activecampaign

// Tag types accepted by the API.
const (
	TagTypeContact  = "contact"
	TagTypeTemplate = "template"
)

// Tag is a CRM tag. The API returns ids as strings.
type Tag struct {
	ID          string `json:"id,omitempty"`
	Tag         string `json:"tag"`
	TagType     string `json:"tagType,omitempty"`
	Description string `json:"description,omitempty"`
}

// Automation is a CRM automation.
type Automation struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Status string  `json:"status,omitempty"`
	Blocks []Block `json:"-"`
}

// Block is one step of an automation.
type Block struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Parent string `json:"parent,omitempty"`
}

// GoalPlan describes a goal that has to be added by hand, since the API
// cannot create goal blocks.
type GoalPlan struct {
	GoalName        string
	AutomationID    string
	AutomationName  string
	Instructions    []string
	AutomationURL   string
	BlocksAvailable bool
}

// Status is always manual_required.
func (GoalPlan) Status() string { return "manual_required" }

type tagsResponse struct {
	Tags []Tag `json:"tags"`
}

type tagResponse struct {
	Tag Tag `json:"tag"`
}

type automationsResponse struct {
	Automations []Automation `json:"automations"`
}

type automationResponse struct {
	Automation Automation `json:"automation"`
}

type blocksResponse struct {
	AutomationBlocks []Block `json:"automationBlocks"`
}
