// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	AssemblyLoadFailedId Id = iota + 1
	HelpParseFailedId
	ScopeUnreadableId
	ConfigLoadFailedId
	WorkerTimeoutId
	ReportWriteFailedId
	BaselineInvalidId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	name     string      // stable slug accepted by 'helpaudit explain'
	title    string      // one-line summary for listings
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	extLinks []HttpLink  // external links that might be useful for the user
}

var idNames = map[Id]string{
	AssemblyLoadFailedId: "assembly-load-failed",
	HelpParseFailedId:    "help-parse-failed",
	ScopeUnreadableId:    "scope-unreadable",
	ConfigLoadFailedId:   "config-load-failed",
	WorkerTimeoutId:      "worker-timeout",
	ReportWriteFailedId:  "report-write-failed",
	BaselineInvalidId:    "baseline-invalid",
}

// String returns the slug of a known id, or its number.
func (id Id) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return strconv.Itoa(int(id))
}

// IsValid reports whether id names a catalog entry.
func (id Id) IsValid() bool {
	_, ok := idNames[id]
	return ok
}

// ParseId accepts a slug (case-insensitive) or a numeric id.
func ParseId(s string) (Id, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for id, name := range idNames {
		if name == s {
			return id, true
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Id(n).IsValid() {
		return Id(n), true
	}
	return 0, false
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) Name() string {
	return i.name
}

func (i *Issue) Title() string {
	return i.title
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the message with glamour. stylePath is a glamour style
// name ("auto", "dark", "light", "notty") or a path to a JSON style.
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.extLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	assemblyLoadFailedIssue = &Issue{
		id:    AssemblyLoadFailedId,
		name:  idNames[AssemblyLoadFailedId],
		title: "A module binary could not be inspected",
		mdMsg: `
# Module binary could not be inspected

The binary next to a help file was found, but no cmdlets could be read from it.
The pair was skipped; the rest of the scan continued.

## Common causes:
- The file is a native DLL rather than a .NET assembly
- The file is truncated or was being written during the scan
- The configured inspector script failed

## Things you can try:
- Run the scan with ` + "`--verbose`" + ` to see the inspector error
- Inspect the binary on its own:
~~~
$ helpaudit internal inspect --dir <module folder> -- <Name>.dll
~~~`,
		extLinks: []HttpLink{"https://learn.microsoft.com/dotnet/standard/assembly/"},
	}

	helpParseFailedIssue = &Issue{
		id:    HelpParseFailedId,
		name:  idNames[HelpParseFailedId],
		title: "A help file is not well-formed MAML",
		mdMsg: `
# Help file could not be parsed

The ` + "`<Name>.dll-Help.xml`" + ` file is not well-formed XML. Its module was skipped, so
none of its cmdlets were reported.

## Things you can try:
- Validate the file with an XML linter
- Regenerate the help with your MAML tooling
- Make sure the file is UTF-8 encoded`,
		extLinks: []HttpLink{"https://learn.microsoft.com/powershell/scripting/developer/help/writing-help-for-windows-powershell-cmdlets"},
	}

	scopeUnreadableIssue = &Issue{
		id:    ScopeUnreadableId,
		name:  idNames[ScopeUnreadableId],
		title: "A module root or folder could not be listed",
		mdMsg: `
# Directory could not be listed

A scan root or one of its module folders exists but could not be read.
Roots that do not exist at all are skipped silently.

## Things you can try:
- Check the directory permissions
- Remove the root from ` + "`scan.roots`" + ` if it is not meant to be scanned`,
	}

	configLoadFailedIssue = &Issue{
		id:    ConfigLoadFailedId,
		name:  idNames[ConfigLoadFailedId],
		title: "The configuration file is invalid",
		mdMsg: `
# Failed to load configuration!

The configuration file could not be loaded or does not match the schema.

## Schema summary:
~~~cue
scan: {
	roots: [...string]
	help_suffix: string  // default "-Help.xml"
	binary_ext:  string  // default ".dll"
	jobs:        int     // 1 to 64
}
loader: {
	isolation: "process" | "inline"
	inspector: "metadata" | "script"
	script:    string    // required for the script inspector
	timeout:   string    // Go duration, default "60s"
}
report: {
	format:   "csv" | "json" | "markdown"
	path:     string
	baseline: string
}
ui: verbose: bool
~~~

## Things you can try:
- Print the effective configuration:
~~~
$ helpaudit config show
~~~
- Start over from the defaults:
~~~
$ helpaudit config init
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	workerTimeoutIssue = &Issue{
		id:    WorkerTimeoutId,
		name:  idNames[WorkerTimeoutId],
		title: "Inspecting a binary took too long",
		mdMsg: `
# Inspector timed out

The worker process inspecting a binary did not finish within ` + "`loader.timeout`" + `.
It was killed and the pair was skipped.

## Things you can try:
- Raise the limit, e.g. ` + "`HELPAUDIT_LOADER_TIMEOUT=5m`" + `
- Check that a custom inspector script does not wait on stdin`,
	}

	reportWriteFailedIssue = &Issue{
		id:    ReportWriteFailedId,
		name:  idNames[ReportWriteFailedId],
		title: "The report could not be written",
		mdMsg: `
# Report could not be written

Writing a record to the report failed, so the scan was stopped.

## Things you can try:
- Check that the directory of ` + "`report.path`" + ` is writable
- Check for free disk space`,
	}

	baselineInvalidIssue = &Issue{
		id:    BaselineInvalidId,
		name:  idNames[BaselineInvalidId],
		title: "The baseline file is invalid",
		mdMsg: `
# Baseline could not be loaded

The baseline lists known issues that are counted but not reported. Every
entry needs an assembly and a target:

~~~toml
[[suppress]]
assembly = "Contoso.dll"
target = "Contoso.Commands.GetWidgetCommand"
reason = "documented in the online help"
~~~

## Things you can try:
- Regenerate it from the current state:
~~~
$ helpaudit baseline write --output helpaudit-baseline.toml
~~~`,
		extLinks: []HttpLink{"https://toml.io/en/v1.0.0"},
	}

	issues = map[Id]*Issue{
		assemblyLoadFailedIssue.Id(): assemblyLoadFailedIssue,
		helpParseFailedIssue.Id():    helpParseFailedIssue,
		scopeUnreadableIssue.Id():    scopeUnreadableIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		workerTimeoutIssue.Id():      workerTimeoutIssue,
		reportWriteFailedIssue.Id():  reportWriteFailedIssue,
		baselineInvalidIssue.Id():    baselineInvalidIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
