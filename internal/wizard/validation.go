package wizard

import (
	"unicode/utf8"
)

const (
	minProjectNameLength     = 10
	minProjectOverviewLength = 100
)

// Validation messages keyed by field path
const (
	MsgProjectName      = "Project name must be at least 10 characters"
	MsgProjectOverview  = "Project overview must be at least 100 characters"
	MsgDevelopmentAreas = "At least one development area is required"
	MsgTeamMembers      = "At least one team member is required"
	MsgDocumentation    = "Either upload a file or generate documentation"
)

// FieldErrors maps a field path to its message
type FieldErrors map[string]string

// OK reports whether no rule failed
func (e FieldErrors) OK() bool {
	return len(e) == 0
}

// ValidateProjectDetails checks step 1
func ValidateProjectDetails(f FormData) FieldErrors {
	errs := FieldErrors{}
	if utf8.RuneCountInString(f.ProjectName) < minProjectNameLength {
		errs["projectName"] = MsgProjectName
	}
	if utf8.RuneCountInString(f.ProjectOverview) < minProjectOverviewLength {
		errs["projectOverview"] = MsgProjectOverview
	}
	return errs
}

// ValidatePreferences checks step 2; both rules are reported together
func ValidatePreferences(f FormData) FieldErrors {
	errs := FieldErrors{}
	if len(f.DevelopmentAreas) == 0 {
		errs["developmentAreas"] = MsgDevelopmentAreas
	}
	if f.Team().Size() <= 0 {
		errs["teamMembers"] = MsgTeamMembers
	}
	return errs
}

// ValidateDocumentation checks step 3
func ValidateDocumentation(f FormData) FieldErrors {
	errs := FieldErrors{}
	if f.Documentation.IsEmpty() {
		errs["documentation"] = MsgDocumentation
	}
	return errs
}

// ValidateStep runs the rules of a single step. Step 4 has none.
func ValidateStep(step int, f FormData) FieldErrors {
	switch step {
	case StepProjectDetails:
		return ValidateProjectDetails(f)
	case StepPreferences:
		return ValidatePreferences(f)
	case StepDocumentation:
		return ValidateDocumentation(f)
	default:
		return FieldErrors{}
	}
}

// ValidateAll runs every step, used before submission
func ValidateAll(f FormData) FieldErrors {
	errs := FieldErrors{}
	for step := FirstStep; step <= LastStep; step++ {
		for k, v := range ValidateStep(step, f) {
			errs[k] = v
		}
	}
	return errs
}
