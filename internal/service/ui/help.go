package ui

import "text/template"

// HelpTemplate is the cobra help layout; it expects TemplateFuncs to be
// registered with cobra.AddTemplateFuncs.
const HelpTemplate = `
{{StyleTitle "USAGE"}}
  {{.UseLine}}
{{if gt (len .Commands) 0}}{{StyleTitle "AVAILABLE COMMANDS"}}
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding}} {{StyleDesc .Short}}{{end}}
{{end}}{{end}}
{{if .HasAvailableLocalFlags}}{{StyleTitle "FLAGS"}}
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces | StyleFlag}}
{{end}}
`

func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"StyleTitle": func(s string) string { return TitleStyle.Render(s) },
		"StyleUsage": func(s string) string { return UsageStyle.Render(s) },
		"StyleFlag":  func(s string) string { return FlagStyle.Render(s) },
		"StyleDesc":  func(s string) string { return DescStyle.Render(s) },
	}
}
