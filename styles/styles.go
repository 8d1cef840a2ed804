package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Primary   = lipgloss.Color("#7D56F4") // Purple
	Secondary = lipgloss.Color("#00F5FF") // Cyan
	Success   = lipgloss.Color("#00E680") // Green
	Warning   = lipgloss.Color("#FFB800") // Yellow
	Error     = lipgloss.Color("#FF4D4D") // Red
	Muted     = lipgloss.Color("#6B7280") // Gray
	Text      = lipgloss.Color("#E5E7EB") // Light Gray

	// Title styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(Text).
			Background(Primary).
			Padding(0, 1).
			Bold(true)

	// Text styles
	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(Secondary)

	// Status styles
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	// Box styles
	SuccessBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Success).
			Padding(1, 2).
			Margin(1, 0)

	ErrorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Error).
			Padding(1, 2).
			Margin(1, 0)

	// User-code box shown during device authorization
	CodeBox = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(Secondary).
			Padding(0, 1).
			Bold(true)

	// Verification instructions box
	VerificationBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Secondary).
			Padding(1, 2).
			Margin(1, 0)

	// Help text style
	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			MarginTop(1)

	// Spinner style
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(Primary)
)
