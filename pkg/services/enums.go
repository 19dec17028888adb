package services

import (
	"fmt"
	"strings"
)

// InterviewFormat selects the interview runtime.
type InterviewFormat int

const (
	InterviewFormatUnspecified InterviewFormat = iota
	InterviewFormatJavaScript
	InterviewFormatSilverlight
)

var interviewFormatNames = map[InterviewFormat]string{
	InterviewFormatUnspecified: "Unspecified",
	InterviewFormatJavaScript:  "JavaScript",
	InterviewFormatSilverlight: "Silverlight",
}

func (f InterviewFormat) String() string {
	if n, ok := interviewFormatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("InterviewFormat(%d)", int(f))
}

func ParseInterviewFormat(s string) (InterviewFormat, error) {
	for f, n := range interviewFormatNames {
		if strings.EqualFold(n, s) {
			return f, nil
		}
	}
	return InterviewFormatUnspecified, fmt.Errorf("unknown interview format %q", s)
}

// InterviewOptions is a bitflag set.
type InterviewOptions uint32

const (
	InterviewOptionsNone                      InterviewOptions = 0
	InterviewOptionsNoImages                  InterviewOptions = 1 << 0
	InterviewOptionsOmitImages                InterviewOptions = 1 << 1
	InterviewOptionsExcludeStateFromInterview InterviewOptions = 1 << 2
)

var interviewOptionNames = []struct {
	o    InterviewOptions
	name string
}{
	{InterviewOptionsNoImages, "NoImages"},
	{InterviewOptionsOmitImages, "OmitImages"},
	{InterviewOptionsExcludeStateFromInterview, "ExcludeStateFromInterview"},
}

func (o InterviewOptions) String() string {
	if o == InterviewOptionsNone {
		return "None"
	}
	var parts []string
	for _, n := range interviewOptionNames {
		if o&n.o != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ", ")
}

// HDSupportFilesBuildFlags tells the engine which interview support files to build.
type HDSupportFilesBuildFlags uint32

const (
	BuildIncludeJavaScript  HDSupportFilesBuildFlags = 1 << 0
	BuildIncludeSilverlight HDSupportFilesBuildFlags = 1 << 1
	BuildForceRebuildAll    HDSupportFilesBuildFlags = 1 << 2
	BuildIncludeAllRuntimes HDSupportFilesBuildFlags = BuildIncludeJavaScript | BuildIncludeSilverlight
)

var buildFlagNames = []struct {
	f    HDSupportFilesBuildFlags
	name string
}{
	{BuildIncludeJavaScript, "IncludeJavaScript"},
	{BuildIncludeSilverlight, "IncludeSilverlight"},
	{BuildForceRebuildAll, "ForceRebuildAll"},
}

func (f HDSupportFilesBuildFlags) String() string {
	var parts []string
	for _, n := range buildFlagNames {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, ", ")
}

// BuildFlagsFor returns the flags needed to support interviews in format f.
func BuildFlagsFor(f InterviewFormat) HDSupportFilesBuildFlags {
	switch f {
	case InterviewFormatJavaScript:
		return BuildIncludeJavaScript
	case InterviewFormatSilverlight:
		return BuildIncludeSilverlight
	}
	return BuildIncludeAllRuntimes
}
