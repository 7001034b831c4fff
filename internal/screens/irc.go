package screens

import (
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

var ircAccount = form.Group("auth", "Identification",
	form.Text("auth.account", "Account").Required().Help("NickServ / SASL account. For grouped nicks try the main."),
	form.Password("auth.password", "Password").Help("NickServ / SASL password."),
)

// IrcAuthRegistry maps each auth mechanism to its credential fields.
var IrcAuthRegistry = form.NewRegistry(
	form.Entry[IrcAuthMechanism]{Value: AuthNone, Fields: form.Fields{}},
	form.Entry[IrcAuthMechanism]{Value: AuthSASLPlain, Fields: ircAccount},
	form.Entry[IrcAuthMechanism]{Value: AuthNickServ, Fields: ircAccount},
)

// IrcNetworks is the IRC network screen.
func IrcNetworks(d Deps) *shell.Screen {
	b := mutation.FromResource(d.API.IrcNetworks, "Network")
	b.SuccessMessages = map[mutation.Kind]string{
		mutation.KindCreate: "IRC Network added. Please allow up to 30 seconds for the network to come online.",
	}
	return &shell.Screen{
		ID:           "irc_networks",
		Title:        "Network",
		EntityName:   "Network",
		Label:        "IRC",
		Icon:         "chat",
		Discriminant: "auth.mechanism",
		Policy:       form.KeepValues,
		Form: form.Compose(
			form.Group("network", "Network",
				form.Text("name", "Name").Required().Help("Network name"),
				form.Switch("enabled", "Enabled"),
				form.Text("server", "Server").Required().Help("Addr: Eg irc.server.net"),
				form.Number("port", "Port").Required().Between(1, 65535).Help("Eg 6667 or 6697"),
				form.Switch("tls", "TLS"),
				form.Password("pass", "Password").Help("Network password"),
				form.Text("nick", "Nick").Required().Help("Nick used to connect to the network"),
				form.Switch("use_bouncer", "Bouncer (BNC)"),
				form.Text("bouncer_addr", "Bouncer address").Required().Help("Address: Eg bouncer.server.net:port").WhenTrue("use_bouncer"),
			),
			form.Group("identification", "Identification",
				form.Select("auth.mechanism", "Mechanism", options(AllIrcAuthMechanisms(), map[IrcAuthMechanism]string{
					AuthNone:      "None",
					AuthSASLPlain: "SASL (plain)",
					AuthNickServ:  "NickServ",
				})...),
			),
			form.On("auth.mechanism", IrcAuthRegistry),
			form.Group("commands", "Commands",
				form.Password("invite_command", "Invite command").Help("Invite command. Eg. !invite"),
			),
		),
		Defaults: func(shell.OpenRequest) model.Values {
			return model.NewValues(map[string]any{
				"name":    "",
				"enabled": true,
				"server":  "",
				"port":    6667,
				"tls":     false,
				"pass":    "",
				"nick":    "",
				"auth": map[string]any{
					"mechanism": string(AuthSASLPlain),
					"account":   "",
				},
				"channels": []any{},
			})
		},
		Fetch:   fetchFromList(d, d.API.IrcNetworks),
		List:    cachedList(d, d.API.IrcNetworks),
		Binding: b,
	}
}
