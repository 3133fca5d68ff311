// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "SafeCity-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/safecity.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("classifier.provider", "gemini")
	viper.SetDefault("classifier.apikey", "")
	viper.SetDefault("classifier.model", "gemini-2.5-flash")
	viper.SetDefault("classifier.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("classifier.failmode", FailModeSafe)
	viper.SetDefault("classifier.timeout", 30*time.Second)

	viper.SetDefault("backend.url", "http://localhost:5000")
	viper.SetDefault("backend.timeout", 15*time.Second)

	viper.SetDefault("monitor.audio.enabled", true)
	viper.SetDefault("monitor.audio.device", "")
	viper.SetDefault("monitor.audio.interval", 2*time.Second)

	viper.SetDefault("monitor.video.enabled", false)
	viper.SetDefault("monitor.video.source", "")
	viper.SetDefault("monitor.video.interval", 5*time.Second)

	viper.SetDefault("analysis.violencethreshold", 120.0)
	viper.SetDefault("analysis.weaponthreshold", 180.0)

	viper.SetDefault("alert.mqtt.enabled", false)
	viper.SetDefault("alert.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("alert.mqtt.topic", "safecity/alerts")
	viper.SetDefault("alert.mqtt.username", "")
	viper.SetDefault("alert.mqtt.password", "")
	viper.SetDefault("alert.mqtt.retain", false)

	viper.SetDefault("alert.push.enabled", false)
	viper.SetDefault("alert.push.urls", []string{})
	viper.SetDefault("alert.push.minlevel", "VIOLENCE")
	viper.SetDefault("alert.push.timeout", 10*time.Second)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "5000")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "logs/webserver.log")
	viper.SetDefault("webserver.log.maxsize", 100)
	viper.SetDefault("webserver.log.maxbackups", 3)
	viper.SetDefault("webserver.log.maxage", 28)

	viper.SetDefault("security.sessionsecret", "")
	viper.SetDefault("security.sessionmaxage", 86400*7)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "safecity.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "safecity")
	viper.SetDefault("output.mysql.password", "safecity")
	viper.SetDefault("output.mysql.database", "safecity")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
