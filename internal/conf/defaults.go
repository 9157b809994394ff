// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers the default value of every setting.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "attendance-monitor")
	v.SetDefault("main.lockfile", "attendance-monitor.lock")

	v.SetDefault("watch.folder", "")
	v.SetDefault("watch.extension", ".xlsx")
	v.SetDefault("watch.scanexisting", true)
	v.SetDefault("watch.ignoreprefixes", []string{"~$", "."})

	v.SetDefault("readiness.pollinterval", 500*time.Millisecond)
	v.SetDefault("readiness.timeout", 20*time.Second)

	v.SetDefault("queue.historycapacity", 1000)
	v.SetDefault("queue.evictfraction", 0.2)
	v.SetDefault("queue.tickinterval", time.Second)
	v.SetDefault("queue.errorbackoff", 5*time.Second)
	v.SetDefault("queue.maxconsecutivefailures", 3)
	v.SetDefault("queue.stoptimeout", 10*time.Second)

	v.SetDefault("reconcile.errormessagelimit", 200)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "attendance.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.passwordfile", "")
	v.SetDefault("database.mysql.database", "attendance")
	v.SetDefault("database.mysql.maxopenconns", 10)
	v.SetDefault("database.mysql.maxidleconns", 5)
	v.SetDefault("database.reconnectattempts", 3)
	v.SetDefault("database.reconnectdelay", 3*time.Second)
	v.SetDefault("database.slowquerythreshold", 200*time.Millisecond)
	v.SetDefault("database.fingerprintcachettl", time.Hour)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", true)
	v.SetDefault("logging.file_output.path", "logs/attendance-monitor.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("notification.historysize", 200)
	v.SetDefault("notification.ratelimit.perminute", 30)
	v.SetDefault("notification.ratelimit.burst", 10)
	v.SetDefault("notification.push.enabled", false)
	v.SetDefault("notification.push.urls", []string{})
	v.SetDefault("notification.push.minpriority", "medium")
	v.SetDefault("notification.push.timeout", 10*time.Second)
	v.SetDefault("notification.mqtt.enabled", false)
	v.SetDefault("notification.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("notification.mqtt.topic", "attendance-monitor/batches")
	v.SetDefault("notification.mqtt.username", "")
	v.SetDefault("notification.mqtt.password", "")
	v.SetDefault("notification.mqtt.passwordfile", "")
	v.SetDefault("notification.mqtt.retain", false)

	v.SetDefault("webserver.enabled", false)
	v.SetDefault("webserver.listen", "127.0.0.1:8089")

	v.SetDefault("resources.enabled", true)
	v.SetDefault("resources.interval", time.Minute)
	v.SetDefault("resources.warnmemorymb", 500)
	v.SetDefault("resources.warncpu", 50.0)
	v.SetDefault("resources.trimmemorymb", 800)
	v.SetDefault("resources.trimtrigger", 500)
	v.SetDefault("resources.trimkeep", 400)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.dsnfile", "")
	v.SetDefault("sentry.environment", "production")
}
