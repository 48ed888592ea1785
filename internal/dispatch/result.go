package dispatch

// SideEffect records a best-effort call made after the main work.
type SideEffect struct {
	Attempted bool   `json:"attempted"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Result is the outcome of one handler run.
type Result struct {
	TaskID         string         `json:"task_id"`
	TaskTitle      string         `json:"task_title,omitempty"`
	Success        bool           `json:"success"`
	Message        string         `json:"message,omitempty"`
	Error          string         `json:"error,omitempty"`
	NextSteps      []string       `json:"next_steps,omitempty"`
	ManualRequired bool           `json:"manual_required,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	Comment        SideEffect     `json:"comment"`
	Transition     SideEffect     `json:"transition"`
}

func (s *SideEffect) record(err error) {
	s.Attempted = true
	s.OK = err == nil
	if err != nil {
		s.Error = err.Error()
	}
}
