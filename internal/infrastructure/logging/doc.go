// Package logging builds the structured logger every GridLink component
// writes through.
//
// It is a thin layer over log/slog: JSON or text output, a level filter and
// the service/version attributes on each entry. Components receive a
// *Logger (usually tagged with Component) and depend on it only through the
// small Debug/Info/Warn/Error interfaces they declare themselves.
//
//	logging:
//	  level: info                      # debug | info | warn | error
//	  format: json                     # json | text
//	  output: /var/log/gridlink.log    # stdout | stderr | file path
//
//	log := logging.New(cfg.Logging, version, "server_id", cfg.Server.ID)
//	log.Component("lifecycle").Info("control started", "href", "/derp_0_derc_1")
//
// PINs and InfluxDB tokens must never be logged.
package logging
