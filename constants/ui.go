package constants

// Application identity
const (
	AppName    = "PROXANGE"
	AppVersion = "v2.0"
)

// Badge text
const (
	BadgeActive = " ACTIVE "
	BadgeIdle   = " IDLE "
	ModeNormal  = " NORMAL "
	ModeCommand = " TERMINAL "
	ModePrompt  = " ADD PROXY "
	AudioStr    = " ♫ "
)

// Canvas glyphs
const (
	GlyphLinkedLarge = '●'
	GlyphLinkedSmall = '•'
	GlyphIdle        = '∙'
	GlyphEdge        = '·'
	GlyphProgress    = '█'
	GlyphProgressBg  = '░'
)

// Terminal prompt
const (
	LogPrefix      = "> "
	TerminalPrompt = "$ "
)

// AddProxyHint is shown above the add-proxy input line
const AddProxyHint = "kind (tor|http|socks) name url, Enter adds, Esc cancels"

// HelpText lists the terminal commands in display order
const HelpText = "Available commands: rotate, status, clear, exit"

// UnknownCommandText is the fallback response of the terminal
const UnknownCommandText = `Unknown command. Type "help" for available commands.`

// KeyHints is the footer legend in normal mode
const KeyHints = "space:auto  r:rotate  +/-:interval  t:terminal  p:test proxies  k:leak check  a:add proxy  c:clear logs  m:mute  q:quit"
