package screens

import (
	"github.com/autobrr/autobrr-sub001/internal/form"
	"github.com/autobrr/autobrr-sub001/model"
)

// DownloadClientType selects the client-specific fields of a download client.
type DownloadClientType string

const (
	DelugeV1     DownloadClientType = "DELUGE_V1"
	DelugeV2     DownloadClientType = "DELUGE_V2"
	QBittorrent  DownloadClientType = "QBITTORRENT"
	RTorrent     DownloadClientType = "RTORRENT"
	Transmission DownloadClientType = "TRANSMISSION"
	Porla        DownloadClientType = "PORLA"
	Radarr       DownloadClientType = "RADARR"
	Sonarr       DownloadClientType = "SONARR"
	Lidarr       DownloadClientType = "LIDARR"
	Whisparr     DownloadClientType = "WHISPARR"
	Readarr      DownloadClientType = "READARR"
	Sabnzbd      DownloadClientType = "SABNZBD"
)

// AllDownloadClientTypes returns every download client type.
func AllDownloadClientTypes() []DownloadClientType {
	return []DownloadClientType{
		QBittorrent, DelugeV1, DelugeV2, RTorrent, Transmission, Porla,
		Radarr, Sonarr, Lidarr, Whisparr, Readarr, Sabnzbd,
	}
}

var downloadClientLabels = map[DownloadClientType]string{
	QBittorrent:  "qBittorrent",
	DelugeV1:     "Deluge v1",
	DelugeV2:     "Deluge v2",
	RTorrent:     "rTorrent",
	Transmission: "Transmission",
	Porla:        "Porla",
	Radarr:       "Radarr",
	Sonarr:       "Sonarr",
	Lidarr:       "Lidarr",
	Whisparr:     "Whisparr",
	Readarr:      "Readarr",
	Sabnzbd:      "SABnzbd",
}

// IsArr reports whether t is one of the *arr applications.
func (t DownloadClientType) IsArr() bool {
	switch t {
	case Radarr, Sonarr, Lidarr, Whisparr, Readarr:
		return true
	}
	return false
}

// ActionType selects what a filter action does with a matched release.
type ActionType string

const (
	ActionTest         ActionType = "TEST"
	ActionWatchFolder  ActionType = "WATCH_FOLDER"
	ActionWebhook      ActionType = "WEBHOOK"
	ActionExec         ActionType = "EXEC"
	ActionQBittorrent  ActionType = "QBITTORRENT"
	ActionDelugeV1     ActionType = "DELUGE_V1"
	ActionDelugeV2     ActionType = "DELUGE_V2"
	ActionRTorrent     ActionType = "RTORRENT"
	ActionTransmission ActionType = "TRANSMISSION"
	ActionPorla        ActionType = "PORLA"
	ActionRadarr       ActionType = "RADARR"
	ActionSonarr       ActionType = "SONARR"
	ActionLidarr       ActionType = "LIDARR"
	ActionWhisparr     ActionType = "WHISPARR"
	ActionReadarr      ActionType = "READARR"
	ActionSabnzbd      ActionType = "SABNZBD"
)

// AllActionTypes returns every action type.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionTest, ActionWatchFolder, ActionWebhook, ActionExec,
		ActionQBittorrent, ActionDelugeV1, ActionDelugeV2, ActionRTorrent,
		ActionTransmission, ActionPorla, ActionRadarr, ActionSonarr,
		ActionLidarr, ActionWhisparr, ActionReadarr, ActionSabnzbd,
	}
}

var actionLabels = map[ActionType]string{
	ActionTest:         "Test",
	ActionWatchFolder:  "Watch dir",
	ActionWebhook:      "Webhook",
	ActionExec:         "Exec",
	ActionQBittorrent:  "qBittorrent",
	ActionDelugeV1:     "Deluge",
	ActionDelugeV2:     "Deluge v2",
	ActionRTorrent:     "rTorrent",
	ActionTransmission: "Transmission",
	ActionPorla:        "Porla",
	ActionRadarr:       "Radarr",
	ActionSonarr:       "Sonarr",
	ActionLidarr:       "Lidarr",
	ActionWhisparr:     "Whisparr",
	ActionReadarr:      "Readarr",
	ActionSabnzbd:      "SABnzbd",
}

// NotificationType selects the notification service.
type NotificationType string

const (
	Discord   NotificationType = "DISCORD"
	Notifiarr NotificationType = "NOTIFIARR"
	Telegram  NotificationType = "TELEGRAM"
	Pushover  NotificationType = "PUSHOVER"
	Gotify    NotificationType = "GOTIFY"
	Ntfy      NotificationType = "NTFY"
	LunaSea   NotificationType = "LUNASEA"
	Shoutrrr  NotificationType = "SHOUTRRR"
)

// AllNotificationTypes returns every notification type.
func AllNotificationTypes() []NotificationType {
	return []NotificationType{Discord, Gotify, LunaSea, Notifiarr, Ntfy, Pushover, Shoutrrr, Telegram}
}

var notificationLabels = map[NotificationType]string{
	Discord:   "Discord",
	Gotify:    "Gotify",
	LunaSea:   "LunaSea",
	Notifiarr: "Notifiarr",
	Ntfy:      "ntfy",
	Pushover:  "Pushover",
	Shoutrrr:  "Shoutrrr",
	Telegram:  "Telegram",
}

// ListType selects the source of an autobrr list.
type ListType string

const (
	ListSonarr     ListType = "SONARR"
	ListRadarr     ListType = "RADARR"
	ListLidarr     ListType = "LIDARR"
	ListReadarr    ListType = "READARR"
	ListWhisparr   ListType = "WHISPARR"
	ListMDBList    ListType = "MDBLIST"
	ListTrakt      ListType = "TRAKT"
	ListPlaintext  ListType = "PLAINTEXT"
	ListSteam      ListType = "STEAM"
	ListMetacritic ListType = "METACRITIC"
)

// AllListTypes returns every list type.
func AllListTypes() []ListType {
	return []ListType{
		ListSonarr, ListRadarr, ListLidarr, ListReadarr, ListWhisparr,
		ListMDBList, ListTrakt, ListPlaintext, ListSteam, ListMetacritic,
	}
}

var listLabels = map[ListType]string{
	ListSonarr:     "Sonarr",
	ListRadarr:     "Radarr",
	ListLidarr:     "Lidarr",
	ListReadarr:    "Readarr",
	ListWhisparr:   "Whisparr",
	ListMDBList:    "MDBList",
	ListTrakt:      "Trakt",
	ListPlaintext:  "Plaintext",
	ListSteam:      "Steam",
	ListMetacritic: "Metacritic",
}

// IsArr reports whether the list is fed by an *arr application.
func (t ListType) IsArr() bool {
	switch t {
	case ListSonarr, ListRadarr, ListLidarr, ListReadarr, ListWhisparr:
		return true
	}
	return false
}

// FeedType selects the feed protocol.
type FeedType string

const (
	FeedTorznab FeedType = "TORZNAB"
	FeedNewznab FeedType = "NEWZNAB"
	FeedRSS     FeedType = "RSS"
)

// AllFeedTypes returns every feed type.
func AllFeedTypes() []FeedType {
	return []FeedType{FeedTorznab, FeedNewznab, FeedRSS}
}

// IndexerImplementation selects how autobrr talks to an indexer.
type IndexerImplementation string

const (
	ImplementationIRC     IndexerImplementation = "irc"
	ImplementationTorznab IndexerImplementation = "torznab"
	ImplementationNewznab IndexerImplementation = "newznab"
	ImplementationRSS     IndexerImplementation = "rss"
)

// AllIndexerImplementations returns every indexer implementation.
func AllIndexerImplementations() []IndexerImplementation {
	return []IndexerImplementation{ImplementationIRC, ImplementationTorznab, ImplementationNewznab, ImplementationRSS}
}

// IrcAuthMechanism selects how autobrr authenticates to an IRC network.
type IrcAuthMechanism string

const (
	AuthNone      IrcAuthMechanism = "NONE"
	AuthSASLPlain IrcAuthMechanism = "SASL_PLAIN"
	AuthNickServ  IrcAuthMechanism = "NICKSERV"
)

// AllIrcAuthMechanisms returns every IRC auth mechanism.
func AllIrcAuthMechanisms() []IrcAuthMechanism {
	return []IrcAuthMechanism{AuthNone, AuthSASLPlain, AuthNickServ}
}

// NotificationEvents are the events a notification can subscribe to.
var NotificationEvents = []model.OptionDescriptor{
	{Value: "PUSH_REJECTED", Label: "Push Rejected", Description: "On push rejected for the arrs or download client"},
	{Value: "PUSH_APPROVED", Label: "Push Approved", Description: "On push approved for the arrs or download client"},
	{Value: "PUSH_ERROR", Label: "Push Error", Description: "On push error for the arrs or download client"},
	{Value: "IRC_DISCONNECTED", Label: "IRC Disconnected", Description: "Unexpectedly disconnected from irc network"},
	{Value: "IRC_RECONNECTED", Label: "IRC Reconnected", Description: "Reconnected to irc network after error"},
	{Value: "APP_UPDATE_AVAILABLE", Label: "New update", Description: "Get notified on updates"},
}

// options renders typed values as select options, using labels where known.
func options[D ~string](values []D, labels map[D]string) []model.OptionDescriptor {
	out := make([]model.OptionDescriptor, 0, len(values))
	for _, v := range values {
		label, ok := labels[v]
		if !ok {
			label = string(v)
		}
		out = append(out, form.Option(string(v), label))
	}
	return out
}
