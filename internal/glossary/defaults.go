package glossary

// Built-in glossary. Entry order is load-bearing: the first entry claiming
// a synonym wins, so action verbs come before nouns that might share a
// surface form.
var defaultEntries = []Entry{
	{Canonical: "clicks", Synonyms: []string{"click", "taps", "tap", "presses on", "hits", "hit", "selects button"}},
	{Canonical: "fills", Synonyms: []string{"fill", "enters", "enter", "types", "type", "inputs", "input", "writes"}},
	{Canonical: "selects", Synonyms: []string{"select", "chooses", "choose", "picks", "pick"}},
	{Canonical: "checks", Synonyms: []string{"check", "ticks", "tick", "enables checkbox"}},
	{Canonical: "unchecks", Synonyms: []string{"uncheck", "unticks", "untick", "disables checkbox"}},
	{Canonical: "presses", Synonyms: []string{"press", "hits key", "strikes"}},
	{Canonical: "navigates", Synonyms: []string{"navigate", "goes", "go", "visits", "visit", "opens page", "browses"}},
	{Canonical: "sees", Synonyms: []string{"see", "observes", "observe", "views", "notices", "should see"}},
	{Canonical: "user", Synonyms: []string{"visitor", "customer", "the user", "they"}},
	{Canonical: "button", Synonyms: []string{"btn", "push button"}},
	{Canonical: "field", Synonyms: []string{"textbox", "text box", "input field", "text field"}},
	{Canonical: "dropdown", Synonyms: []string{"select box", "combobox", "combo box", "picker"}},
	{Canonical: "checkbox", Synonyms: []string{"check box", "tick box"}},
	{Canonical: "link", Synonyms: []string{"hyperlink", "anchor"}},
	{Canonical: "heading", Synonyms: []string{"header", "title text"}},
	{Canonical: "toast", Synonyms: []string{"notification", "snackbar", "flash message"}},
	{Canonical: "page", Synonyms: []string{"screen", "view"}},
}

var defaultLabels = map[string]string{
	"sign in":  "Sign In",
	"sign out": "Sign Out",
	"sign up":  "Sign Up",
	"log in":   "Log In",
	"log out":  "Log Out",
	"submit":   "Submit",
	"cancel":   "Cancel",
	"save":     "Save",
	"continue": "Continue",
	"search":   "Search",
}

var defaultModules = map[string]string{
	"logs in":            "auth.login",
	"logs out":           "auth.logout",
	"is authenticated":   "auth.ensureSession",
	"resets the session": "session.reset",
	"clears the cart":    "cart.clear",
}
