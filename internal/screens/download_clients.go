package screens

import (
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/internal/mutation"
	"github.com/autobrr/autobrr-sub001/internal/shell"
	"github.com/autobrr/autobrr-sub001/model"
)

var (
	clientHost = form.Text("host", "Host").Required().Help("Eg. client.domain.ltd, domain.ltd/client, domain.ltd:port")
	clientPort = form.Number("port", "Port").Between(0, 65535)
	clientTLS  = form.Switch("tls", "TLS")
	clientSkip = form.Switch("tls_skip_verify", "Skip TLS verification (insecure)").WhenTrue("tls")
	clientUser = form.Text("username", "Username")
	clientPass = form.Password("password", "Password")

	basicAuth = []form.Field{
		form.Switch("settings.basic.auth", "Basic auth"),
		form.Text("settings.basic.username", "Username").WhenTrue("settings.basic.auth"),
		form.Password("settings.basic.password", "Password").WhenTrue("settings.basic.auth"),
	}
)

func connection(fields ...form.Field) form.Fields {
	return form.Group("connection", "Connection", fields...)
}

func withBasicAuth(fields ...form.Field) form.Fields {
	return connection(append(fields, basicAuth...)...)
}

var (
	delugeFields = connection(clientHost, clientPort, clientTLS, clientSkip, clientUser, clientPass)

	qbitFields = withBasicAuth(
		clientHost,
		clientPort.Help("WebUI port for qBittorrent. 0 uses the port in the host URL or the scheme default"),
		clientTLS, clientSkip, clientUser, clientPass,
	)

	rtorrentFields = connection(
		clientHost.Help("Full url http(s)://domain.ltd/RPC2"),
		clientTLS, clientSkip,
		form.Switch("settings.auth.enabled", "Auth"),
		form.Select("settings.auth.type", "Auth type",
			form.Option("BASIC_AUTH", "Basic Auth"),
			form.Option("DIGEST_AUTH", "Digest Auth"),
		).WhenTrue("settings.auth.enabled"),
		form.Text("settings.auth.username", "Username").WhenTrue("settings.auth.enabled"),
		form.Password("settings.auth.password", "Password").WhenTrue("settings.auth.enabled"),
	)

	transmissionFields = connection(clientHost, clientPort.Help("Port for Transmission"), clientTLS, clientSkip, clientUser, clientPass)

	porlaFields = withBasicAuth(
		clientHost, clientTLS,
		form.Password("settings.apikey", "Auth token").Required(),
		clientSkip,
	)

	arrFields = withBasicAuth(
		clientHost.Help("Full url http(s)://domain.ltd and/or subdomain/subfolder"),
		clientTLS, clientSkip,
		form.Password("settings.apikey", "API key").Required(),
	)

	sabnzbdFields = withBasicAuth(
		clientHost, clientPort, clientTLS, clientSkip,
		form.Password("settings.apikey", "API key"),
	)
)

// DownloadClientRegistry maps each client type to its connection fields.
var DownloadClientRegistry = form.NewRegistry(
	form.Entry[DownloadClientType]{Value: DelugeV1, Fields: delugeFields},
	form.Entry[DownloadClientType]{Value: DelugeV2, Fields: delugeFields},
	form.Entry[DownloadClientType]{Value: QBittorrent, Fields: qbitFields},
	form.Entry[DownloadClientType]{Value: RTorrent, Fields: rtorrentFields},
	form.Entry[DownloadClientType]{Value: Transmission, Fields: transmissionFields},
	form.Entry[DownloadClientType]{Value: Porla, Fields: porlaFields},
	form.Entry[DownloadClientType]{Value: Radarr, Fields: arrFields},
	form.Entry[DownloadClientType]{Value: Sonarr, Fields: arrFields},
	form.Entry[DownloadClientType]{Value: Lidarr, Fields: arrFields},
	form.Entry[DownloadClientType]{Value: Whisparr, Fields: arrFields},
	form.Entry[DownloadClientType]{Value: Readarr, Fields: arrFields},
	form.Entry[DownloadClientType]{Value: Sabnzbd, Fields: sabnzbdFields},
)

const rulesEnabled = "settings.rules.enabled"

var (
	maxActiveDownloads = form.Number("settings.rules.max_active_downloads", "Max active downloads").
				Between(0, 1000).
				Help("Limit the amount of active downloads (0 is unlimited), to give the maximum amount of bandwidth and disk for the downloads").
				WhenTrue(rulesEnabled)

	basicRules = form.Group("rules", "Rules",
		form.Switch(rulesEnabled, "Enabled"),
		maxActiveDownloads,
	)

	qbitRules = form.Group("rules", "Rules",
		form.Switch(rulesEnabled, "Enabled"),
		maxActiveDownloads,
		form.Switch("settings.rules.ignore_slow_torrents", "Ignore slow torrents").WhenTrue(rulesEnabled),
		form.Select("settings.rules.ignore_slow_torrents_condition", "Ignore condition",
			form.Option("ALWAYS", "Always"),
			form.Option("MAX_DOWNLOADS_REACHED", "Max downloads reached"),
		).When(rulesAnd("settings.rules.ignore_slow_torrents")),
		form.Number("settings.rules.download_speed_threshold", "Download speed threshold").
			Help("If download speed is below this when max active downloads is hit, download anyways. KB/s").
			When(rulesAnd("settings.rules.ignore_slow_torrents")),
		form.Number("settings.rules.upload_speed_threshold", "Upload speed threshold").
			Help("If upload speed is below this when max active downloads is hit, download anyways. KB/s").
			When(rulesAnd("settings.rules.ignore_slow_torrents")),
	)

	arrRules = form.Group("rules", "Rules",
		form.Text("settings.external_download_client", "Client Name").
			Help("Specify what client the arr should use by default. Can be overridden per filter action."),
		form.Number("settings.external_download_client_id", "Client ID DEPRECATED").
			Help("DEPRECATED: Use Client name field instead."),
	)
)

func rulesAnd(path string) func(model.Values) bool {
	return func(v model.Values) bool { return v.Bool(rulesEnabled) && v.Bool(path) }
}

// DownloadClientRulesRegistry holds the rules section. Types without rules
// render nothing.
var DownloadClientRulesRegistry = form.NewRegistry(
	form.Entry[DownloadClientType]{Value: DelugeV1, Fields: basicRules},
	form.Entry[DownloadClientType]{Value: DelugeV2, Fields: basicRules},
	form.Entry[DownloadClientType]{Value: QBittorrent, Fields: qbitRules},
	form.Entry[DownloadClientType]{Value: Porla, Fields: basicRules},
	form.Entry[DownloadClientType]{Value: Transmission, Fields: basicRules},
	form.Entry[DownloadClientType]{Value: Radarr, Fields: arrRules},
	form.Entry[DownloadClientType]{Value: Sonarr, Fields: arrRules},
	form.Entry[DownloadClientType]{Value: Lidarr, Fields: arrRules},
	form.Entry[DownloadClientType]{Value: Whisparr, Fields: arrRules},
	form.Entry[DownloadClientType]{Value: Readarr, Fields: arrRules},
)

// DownloadClients is the download client screen.
func DownloadClients(d Deps) *shell.Screen {
	return &shell.Screen{
		ID:           "download_clients",
		Title:        "Download client",
		EntityName:   "Download client",
		Label:        "Clients",
		Icon:         "download",
		Discriminant: "type",
		Policy:       form.KeepValues,
		Form: form.Compose(
			form.Group("general", "General",
				form.Select("type", "Type", options(AllDownloadClientTypes(), downloadClientLabels)...).Required(),
				form.Text("name", "Name").Required(),
				form.Switch("enabled", "Enabled"),
			),
			form.On("type", DownloadClientRegistry),
			form.On("type", DownloadClientRulesRegistry),
		),
		Defaults: func(shell.OpenRequest) model.Values {
			return model.NewValues(map[string]any{
				"name":            "",
				"type":            string(QBittorrent),
				"enabled":         true,
				"host":            "",
				"port":            0,
				"tls":             false,
				"tls_skip_verify": false,
				"username":        "",
				"password":        "",
				"settings":        map[string]any{},
			})
		},
		Fetch:   fetchFromList(d, d.API.DownloadClients),
		List:    cachedList(d, d.API.DownloadClients),
		Binding: mutation.FromResource(d.API.DownloadClients, "Download client"),
	}
}
