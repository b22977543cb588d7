// Package notify delivers verification codes.
//
// Every notifier implements verification.Notifier and reports transport
// failures through Result rather than returning errors. They compose:
//
//	n := notify.NewBreaker(
//		notify.NewRouter(emailNotifier, notify.NewKafkaNotifier(producer, cfg)),
//		notify.DefaultBreakerConfig("sms"), logger, prometheus.DefaultRegisterer)
//
// LogNotifier writes codes to a slog logger and is meant for development.
package notify
