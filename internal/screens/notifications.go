package screens

import (
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

func settings(fields ...form.Field) form.Fields {
	return form.Group("settings", "Settings", fields...)
}

var webhook = form.Password("webhook", "Webhook URL").Required().Validate("url")

// NotificationRegistry maps each notification service to its settings.
var NotificationRegistry = form.NewRegistry(
	form.Entry[NotificationType]{Value: Discord, Fields: settings(
		webhook.Help("Create a webhook integration in your server."),
	)},
	form.Entry[NotificationType]{Value: Notifiarr, Fields: settings(
		form.Password("api_key", "API Key").Required().Help("Notifiarr API Key with Passthrough Integration enabled."),
	)},
	form.Entry[NotificationType]{Value: LunaSea, Fields: settings(
		webhook.Help("LunaSea offers notifications across all devices linked to your account (User-Based) or to a single device without an account (Device-Based)."),
	)},
	form.Entry[NotificationType]{Value: Telegram, Fields: settings(
		form.Password("token", "Bot token").Required(),
		form.Password("channel", "Chat ID").Required(),
		form.Password("topic", "Message Thread ID").Help("Message Thread (topic) of a Supergroup"),
		form.Text("host", "Telegram Api Proxy").Help("Reverse proxy domain for api.telegram.org, only needs to be specified if the network you are using blocks the Telegram API."),
		form.Text("username", "Sender").Help("Custom sender name to show at the top of a notification"),
	)},
	form.Entry[NotificationType]{Value: Pushover, Fields: settings(
		form.Password("api_key", "API Token").Required(),
		form.Password("token", "User Key").Required(),
		form.Number("priority", "Priority").Required().Between(-2, 2).Help("-2, -1, 0 (default), 1, or 2"),
	)},
	form.Entry[NotificationType]{Value: Gotify, Fields: settings(
		form.Text("host", "Gotify URL").Required().Validate("url").Help("Gotify server URL"),
		form.Password("token", "Application Token").Required(),
	)},
	form.Entry[NotificationType]{Value: Ntfy, Fields: settings(
		form.Text("host", "NTFY URL").Required().Help("ntfy topic URL, e.g. https://ntfy.sh/autobrr"),
		form.Text("username", "Username"),
		form.Password("password", "Password"),
		form.Password("token", "Access token").Help("Access token. Use this or Username+password"),
		form.Number("priority", "Priority").Between(1, 5).Help("Max 5, 4, 3 (default), 2, 1 Min"),
	)},
	form.Entry[NotificationType]{Value: Shoutrrr, Fields: settings(
		form.Text("host", "URL").Required().Help("Shoutrrr service URL"),
	)},
)

// Notifications is the notification screen.
func Notifications(d Deps) *shell.Screen {
	b := mutation.FromResource(d.API.Notifications, "Notification")
	b.SuccessMessages = map[mutation.Kind]string{
		mutation.KindTest: "Test notification sent",
	}
	return &shell.Screen{
		ID:           "notifications",
		Title:        "Notification",
		EntityName:   "Notification",
		Label:        "Notifications",
		Icon:         "bell",
		Discriminant: "type",
		Policy:       form.ResetToDefaults,
		Form: form.Compose(
			form.Group("general", "General",
				form.Text("name", "Name").Required(),
				form.Select("type", "Type", options(AllNotificationTypes(), notificationLabels)...).Required(),
				form.Switch("enabled", "Enabled"),
			),
			form.On("type", NotificationRegistry),
			form.Group("events", "Events",
				form.MultiSelect("events", "Events", NotificationEvents...).Help("Select what events to trigger on"),
			),
		),
		Defaults: func(shell.OpenRequest) model.Values {
			return model.NewValues(map[string]any{
				"name":    "",
				"enabled": true,
				"type":    string(Discord),
				"events":  []any{},
			})
		},
		Fetch:   fetchFromList(d, d.API.Notifications),
		List:    cachedList(d, d.API.Notifications),
		Binding: b,
	}
}
