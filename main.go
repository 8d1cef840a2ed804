package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	flag "github.com/spf13/pflag"

	awsclient "ssograb/aws"
	"ssograb/config"
	"ssograb/logging"
	"ssograb/styles"
	"ssograb/utils"
)

const oidcClientName = "ssograb"

// Model states
const (
	stateSelectProfile = iota
	stateAddProfile
	stateStartingLogin
	stateAwaitConfirm
	statePolling
	stateLoadingCatalog
	stateSelectRoles
	stateResolving
	stateDone
	stateFailed
)

// Messages emitted by pipeline commands
type loginReadyMsg struct {
	client *awsclient.Client
	reg    awsclient.ClientRegistration
	auth   *awsclient.DeviceAuthorization
}

type tokenMsg struct {
	accessToken string
}

type catalogMsg struct {
	entries []awsclient.AccountRoleEntry
}

type resolvedMsg struct {
	res *awsclient.Resolution
	arn string
}

type failMsg struct {
	err error
}

// profileItem is a saved SSO profile shown in the profile list.
type profileItem struct {
	profile config.SSOProfile
}

func (i profileItem) Title() string       { return i.profile.Name }
func (i profileItem) Description() string { return fmt.Sprintf("Region: %s", i.profile.Region) }
func (i profileItem) FilterValue() string { return i.profile.Name }

// roleItem is one account/role assignment in the multi-select list.
type roleItem struct {
	entry    awsclient.AccountRoleEntry
	selected bool
}

func (i roleItem) Title() string {
	marker := "[ ]"
	if i.selected {
		marker = "[x]"
	}
	return fmt.Sprintf("%s %s (%s)", marker, i.entry.AccountName, i.entry.AccountID)
}
func (i roleItem) Description() string { return fmt.Sprintf("Role: %s", i.entry.RoleName) }
func (i roleItem) FilterValue() string { return i.entry.String() }

// Main app model
type model struct {
	state  int
	width  int
	height int

	cfgMgr   *config.Manager
	profiles []config.SSOProfile

	profileList list.Model
	roleList    list.Model
	spinner     spinner.Model

	// Form for adding an SSO profile
	inputs     []textinput.Model
	focusIndex int
	formError  string

	// Pipeline state
	startURL    string
	region      string
	noBrowser   bool
	client      *awsclient.Client
	reg         awsclient.ClientRegistration
	auth        *awsclient.DeviceAuthorization
	browserErr  error
	accessToken string
	// selections holds display strings in the order the operator toggled them
	selections []string
	res        *awsclient.Resolution
	callerArn  string
	err        error
}

func initialInputs() []textinput.Model {
	inputs := make([]textinput.Model, 3)

	var t textinput.Model

	t = textinput.New()
	t.Placeholder = "My Company SSO"
	t.Focus()
	t.CharLimit = 50
	t.Width = 40
	t.Prompt = "› "
	inputs[0] = t

	t = textinput.New()
	t.Placeholder = "https://company.awsapps.com/start"
	t.CharLimit = 100
	t.Width = 40
	t.Prompt = "› "
	inputs[1] = t

	t = textinput.New()
	t.Placeholder = "us-east-1"
	t.CharLimit = 20
	t.Width = 40
	t.Prompt = "› "
	inputs[2] = t

	return inputs
}

func initialModel(cfgMgr *config.Manager, profiles []config.SSOProfile, startURL, region string, noBrowser bool) model {
	delegate := list.NewDefaultDelegate()

	profileItems := make([]list.Item, len(profiles))
	for i, profile := range profiles {
		profileItems[i] = profileItem{profile: profile}
	}

	profileList := list.New(profileItems, delegate, 0, 0)
	profileList.Title = "Select SSO Profile"
	profileList.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{
			key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add new")),
			key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		}
	}

	roleList := list.New([]list.Item{}, delegate, 0, 0)
	roleList.Title = "Select Accounts and Roles"
	roleList.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{
			key.NewBinding(key.WithKeys("space"), key.WithHelp("space", "toggle")),
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "fetch credentials")),
		}
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	m := model{
		state:       stateSelectProfile,
		cfgMgr:      cfgMgr,
		profiles:    profiles,
		profileList: profileList,
		roleList:    roleList,
		spinner:     s,
		inputs:      initialInputs(),
		startURL:    startURL,
		region:      region,
		noBrowser:   noBrowser,
	}

	// Flags bypass the profile store for one-shot runs.
	if startURL != "" && region != "" {
		m.state = stateStartingLogin
	}

	return m
}

func (m model) Init() tea.Cmd {
	if m.state == stateStartingLogin {
		return tea.Batch(m.spinner.Tick, startLoginCmd(m.startURL, m.region))
	}
	return m.spinner.Tick
}

// startLoginCmd registers the OAuth client and starts device authorization.
func startLoginCmd(startURL, region string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		client, err := awsclient.NewClient(region)
		if err != nil {
			return failMsg{err: err}
		}

		reg, err := client.RegisterClient(ctx, oidcClientName, "public")
		if err != nil {
			return failMsg{err: err}
		}

		auth, err := client.StartDeviceAuthorization(ctx, reg, startURL)
		if err != nil {
			return failMsg{err: err}
		}

		return loginReadyMsg{client: client, reg: reg, auth: auth}
	}
}

// pollCmd runs the token poller until a terminal state.
func pollCmd(client *awsclient.Client, reg awsclient.ClientRegistration, auth *awsclient.DeviceAuthorization) tea.Cmd {
	return func() tea.Msg {
		poller := awsclient.NewPoller(client.OIDC(), auth.Interval)
		token, err := poller.PollForToken(context.Background(), reg, auth.DeviceCode)
		if err != nil {
			return failMsg{err: err}
		}
		return tokenMsg{accessToken: token}
	}
}

// loadCatalogCmd enumerates all account/role assignments.
func loadCatalogCmd(client *awsclient.Client, accessToken string) tea.Cmd {
	return func() tea.Msg {
		entries, err := client.ListAssignments(context.Background(), accessToken)
		if err != nil {
			return failMsg{err: err}
		}
		if len(entries) == 0 {
			return failMsg{err: awsclient.ErrNoAssignments}
		}
		return catalogMsg{entries: entries}
	}
}

// resolveCmd fetches credentials for the selections, first success wins.
func resolveCmd(client *awsclient.Client, accessToken string, selections []string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()

		resolver := awsclient.NewResolver(client.SSO(), config.DefaultSink{})
		res, err := resolver.Resolve(ctx, accessToken, selections)
		if err != nil {
			return failMsg{err: err}
		}

		arn, err := client.VerifyCredential(ctx, res.Credential)
		if err != nil {
			logging.Warnf("caller identity check failed: %v", err)
		}

		return resolvedMsg{res: res, arn: arn}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.profileList.SetWidth(msg.Width)
		m.profileList.SetHeight(msg.Height - 4)

		m.roleList.SetWidth(msg.Width)
		m.roleList.SetHeight(msg.Height - 4)

	case failMsg:
		m.err = msg.err
		m.state = stateFailed
		return m, nil

	case loginReadyMsg:
		m.client = msg.client
		m.reg = msg.reg
		m.auth = msg.auth
		m.state = stateAwaitConfirm
		if !m.noBrowser {
			m.browserErr = utils.OpenBrowser(m.auth.VerificationUriComplete)
		}
		return m, nil

	case tokenMsg:
		m.accessToken = msg.accessToken
		m.state = stateLoadingCatalog
		return m, tea.Batch(m.spinner.Tick, loadCatalogCmd(m.client, m.accessToken))

	case catalogMsg:
		roleItems := make([]list.Item, len(msg.entries))
		for i, entry := range msg.entries {
			roleItems[i] = roleItem{entry: entry}
		}
		m.roleList.SetItems(roleItems)
		m.state = stateSelectRoles
		return m, nil

	case resolvedMsg:
		m.res = msg.res
		m.callerArn = msg.arn
		m.state = stateDone
		return m, nil

	case tea.KeyMsg:
		// Global keybindings
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state == stateDone || m.state == stateFailed {
				return m, tea.Quit
			}
		case "esc":
			if m.state == stateAddProfile {
				m.inputs = initialInputs()
				m.focusIndex = 0
				m.formError = ""
				m.state = stateSelectProfile
				return m, nil
			}
		}

		switch m.state {
		case stateSelectProfile:
			// Ignore list navigation keys while filtering.
			if m.profileList.FilterState() == list.Filtering {
				break
			}

			switch msg.String() {
			case "a":
				m.state = stateAddProfile
				m.formError = ""
				m.inputs = initialInputs()
				m.focusIndex = 0
				return m, nil

			case "d":
				if i, ok := m.profileList.SelectedItem().(profileItem); ok {
					idx := slices.IndexFunc(m.profiles, func(p config.SSOProfile) bool {
						return p.Name == i.profile.Name
					})
					if idx >= 0 {
						m.profiles = slices.Delete(m.profiles, idx, idx+1)
						if err := m.cfgMgr.SaveProfiles(m.profiles); err != nil {
							logging.Warnf("failed to save profiles: %v", err)
						}
						m.updateProfileList()
					}
					return m, nil
				}

			case "enter":
				if i, ok := m.profileList.SelectedItem().(profileItem); ok {
					m.startURL = i.profile.StartURL
					m.region = i.profile.Region
					m.state = stateStartingLogin
					return m, tea.Batch(m.spinner.Tick, startLoginCmd(m.startURL, m.region))
				}
			}

		case stateAddProfile:
			switch msg.String() {
			case "tab", "shift+tab", "enter", "up", "down":
				if msg.String() == "enter" && m.focusIndex == len(m.inputs) {
					return m.handleAddFormSubmission()
				}

				if msg.String() == "up" || msg.String() == "shift+tab" {
					m.focusIndex--
				} else {
					m.focusIndex++
				}

				if m.focusIndex > len(m.inputs) {
					m.focusIndex = 0
				} else if m.focusIndex < 0 {
					m.focusIndex = len(m.inputs)
				}

				for i := range m.inputs {
					if i == m.focusIndex {
						cmds = append(cmds, m.inputs[i].Focus())
					} else {
						m.inputs[i].Blur()
					}
				}

				return m, tea.Batch(cmds...)
			}

		case stateAwaitConfirm:
			if msg.String() == "enter" {
				m.state = statePolling
				return m, tea.Batch(m.spinner.Tick, pollCmd(m.client, m.reg, m.auth))
			}

		case stateSelectRoles:
			if m.roleList.FilterState() == list.Filtering {
				break
			}

			switch msg.String() {
			case " ", "space":
				if i, ok := m.roleList.SelectedItem().(roleItem); ok {
					// Locate the item in the full list: the visible index
					// diverges from the backing slice when a filter applies.
					for idx, it := range m.roleList.Items() {
						ri, ok := it.(roleItem)
						if !ok || ri.entry != i.entry {
							continue
						}
						ri.selected = !ri.selected
						display := ri.entry.String()
						if ri.selected {
							m.selections = append(m.selections, display)
						} else {
							m.selections = slices.DeleteFunc(m.selections, func(s string) bool {
								return s == display
							})
						}
						m.roleList.SetItem(idx, ri)
						break
					}
				}
				return m, nil

			case "enter":
				selections := m.selections
				if len(selections) == 0 {
					// Nothing toggled: resolve the highlighted entry.
					if i, ok := m.roleList.SelectedItem().(roleItem); ok {
						selections = []string{i.entry.String()}
					}
				}
				if len(selections) == 0 {
					m.err = awsclient.ErrNothingSelected
					m.state = stateFailed
					return m, nil
				}
				m.state = stateResolving
				return m, tea.Batch(m.spinner.Tick, resolveCmd(m.client, m.accessToken, selections))
			}
		}
	}

	// Component updates per state
	switch m.state {
	case stateSelectProfile:
		var cmd tea.Cmd
		m.profileList, cmd = m.profileList.Update(msg)
		cmds = append(cmds, cmd)

	case stateSelectRoles:
		var cmd tea.Cmd
		m.roleList, cmd = m.roleList.Update(msg)
		cmds = append(cmds, cmd)

	case stateStartingLogin, statePolling, stateLoadingCatalog, stateResolving:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case stateAddProfile:
		for i := range m.inputs {
			if i == m.focusIndex {
				var cmd tea.Cmd
				m.inputs[i], cmd = m.inputs[i].Update(msg)
				cmds = append(cmds, cmd)
			}
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) handleAddFormSubmission() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.inputs[0].Value())
	startURL := strings.TrimSpace(m.inputs[1].Value())
	region := strings.TrimSpace(m.inputs[2].Value())

	if name == "" {
		m.formError = "Name cannot be empty"
		return m, nil
	}

	if !strings.HasPrefix(startURL, "https://") {
		m.formError = "Start URL should begin with https://"
		return m, nil
	}

	if region == "" {
		m.formError = "Region cannot be empty"
		return m, nil
	}

	for _, profile := range m.profiles {
		if profile.Name == name {
			m.formError = "A profile with this name already exists"
			return m, nil
		}
	}

	m.profiles = append(m.profiles, config.SSOProfile{
		Name:     name,
		StartURL: startURL,
		Region:   region,
	})

	if err := m.cfgMgr.SaveProfiles(m.profiles); err != nil {
		m.formError = fmt.Sprintf("Failed to save profiles: %v", err)
		return m, nil
	}

	m.updateProfileList()

	m.inputs = initialInputs()
	m.focusIndex = 0
	m.formError = ""
	m.state = stateSelectProfile

	return m, nil
}

func (m *model) updateProfileList() {
	profileItems := make([]list.Item, len(m.profiles))
	for i, profile := range m.profiles {
		profileItems[i] = profileItem{profile: profile}
	}
	m.profileList.SetItems(profileItems)
}

func (m model) View() string {
	switch m.state {
	case stateSelectProfile:
		return m.profileList.View()

	case stateAddProfile:
		return m.addProfileView()

	case stateStartingLogin:
		return fmt.Sprintf("\n %s Starting device authorization...\n", m.spinner.View())

	case stateAwaitConfirm:
		return m.confirmView()

	case statePolling:
		return fmt.Sprintf("\n %s Waiting for authorization to complete...\n", m.spinner.View())

	case stateLoadingCatalog:
		return fmt.Sprintf("\n %s Fetching accounts and roles...\n", m.spinner.View())

	case stateSelectRoles:
		header := ""
		if n := len(m.selections); n > 0 {
			header = styles.HighlightStyle.Render(fmt.Sprintf("%d selected", n)) + "\n"
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, m.roleList.View())

	case stateResolving:
		return fmt.Sprintf("\n %s Fetching role credentials...\n", m.spinner.View())

	case stateDone:
		return m.doneView()

	case stateFailed:
		return m.failedView()
	}

	return ""
}

func (m model) addProfileView() string {
	title := styles.TitleStyle.Render("Add SSO Profile")

	fields := []string{
		"Name:",
		"Start URL:",
		"Region:",
	}

	var b strings.Builder
	b.WriteString("\n\n")

	for i, field := range fields {
		label := styles.MutedStyle.Render(field)
		if i == m.focusIndex {
			label = styles.HighlightStyle.Render(field)
		}
		b.WriteString(fmt.Sprintf("%s\n%s\n\n", label, m.inputs[i].View()))
	}

	button := "[ Save ]"
	if m.focusIndex == len(m.inputs) {
		button = styles.HighlightStyle.Render(button)
	}
	b.WriteString("\n" + button + "\n")

	if m.formError != "" {
		b.WriteString("\n" + styles.ErrorStyle.Render(m.formError) + "\n")
	}

	b.WriteString(styles.HelpStyle.Render("Press ESC to cancel"))

	return lipgloss.JoinVertical(lipgloss.Left, title, b.String())
}

func (m model) confirmView() string {
	var b strings.Builder

	if m.noBrowser || m.browserErr != nil {
		b.WriteString(fmt.Sprintf("Open the following page in your browser:\n\n%s\n\n",
			styles.HighlightStyle.Render(m.auth.VerificationUri)))
		b.WriteString(fmt.Sprintf("And enter this code:\n\n%s\n", styles.CodeBox.Render(m.auth.UserCode)))
	} else {
		b.WriteString("The verification page was opened in your browser.\n\n")
		b.WriteString(fmt.Sprintf("Confirm this code matches:\n\n%s\n", styles.CodeBox.Render(m.auth.UserCode)))
	}

	content := styles.VerificationBox.Render(b.String())
	help := styles.HelpStyle.Render("Press Enter after completing authentication in the browser")

	return lipgloss.JoinVertical(lipgloss.Left, content, help)
}

func (m model) doneView() string {
	cred := m.res.Credential

	var b strings.Builder
	b.WriteString(styles.SuccessStyle.Render("Credentials fetched!") + "\n\n")
	b.WriteString(fmt.Sprintf("Account: %s\nRole:    %s\n", cred.AccountID, cred.RoleName))

	if m.callerArn != "" {
		b.WriteString(fmt.Sprintf("ARN:     %s\n", m.callerArn))
	}

	if m.res.PersistErr != nil {
		b.WriteString("\n" + styles.WarningStyle.Render(
			fmt.Sprintf("Warning: credentials could not be saved: %v", m.res.PersistErr)))
	} else {
		b.WriteString(fmt.Sprintf("\nDefault profile written to %s", m.res.SavedTo))
	}

	box := styles.SuccessBox.Render(b.String())
	help := styles.HelpStyle.Render("Press q to quit")

	return lipgloss.JoinVertical(lipgloss.Left, box, help)
}

func (m model) failedView() string {
	var msg string
	switch {
	case errors.Is(m.err, awsclient.ErrNoAssignments):
		msg = "No accounts or roles are assigned to this user.\nAsk your administrator for an SSO assignment."
	case errors.Is(m.err, awsclient.ErrNothingSelected):
		msg = "Nothing was selected.\nRun again and pick at least one account and role."
	case errors.Is(m.err, awsclient.ErrNoCredentialsResolved):
		msg = "None of the selected accounts and roles yielded credentials.\nCheck the log output for per-selection failures."
	default:
		msg = m.err.Error()
	}

	box := styles.ErrorBox.Render(styles.ErrorStyle.Render("Login failed") + "\n\n" + msg)
	help := styles.HelpStyle.Render("Press q to quit")

	return lipgloss.JoinVertical(lipgloss.Left, box, help)
}

func main() {
	startURL := flag.String("start-url", "", "SSO start URL (skips the profile list when set with --region)")
	region := flag.String("region", "", "SSO region")
	noBrowser := flag.Bool("no-browser", false, "do not open the verification page in a browser")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	if *logLevel != "" {
		logging.Init(*logLevel)
	}
	defer logging.Sync()

	cfgMgr, err := config.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	profiles, err := cfgMgr.LoadProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m := initialModel(cfgMgr, profiles, *startURL, *region, *noBrowser)

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	if fm, ok := final.(model); ok && fm.state == stateFailed {
		os.Exit(1)
	}
}
