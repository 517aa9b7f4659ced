package models

// Language is the detected implementation language of a project.
type Language string

const (
	LanguageNode    Language = "node"
	LanguagePython  Language = "python"
	LanguageUnknown Language = "unknown"
)

// Framework is the detected application framework of a project.
type Framework string

const (
	FrameworkVite    Framework = "vite"
	FrameworkNextJS  Framework = "nextjs"
	FrameworkReact   Framework = "react"
	FrameworkFastAPI Framework = "fastapi"
	FrameworkDjango  Framework = "django"
	FrameworkFlask   Framework = "flask"
	FrameworkGeneric Framework = "generic"
)

// Environment describes a project's detected runtime environment.
type Environment struct {
	Language    Language  `json:"language"`
	Framework   Framework `json:"framework"`
	DefaultPort int       `json:"default_port"`
	HasDocker   bool      `json:"has_docker"`
	HasCompose  bool      `json:"has_compose"`
}

// FileContext is one project file read for the fixer payload, truncated to
// a size cap.
type FileContext struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}
