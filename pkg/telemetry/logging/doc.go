// Package logging configures the process-wide slog logger and redacts
// credentials before request data reaches diagnostics.
//
// Loggers are built from Config and write JSON or text records either to a
// writer or to a size-rotated file:
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "debug",
//	    Format: "json",
//	    File:   logging.FileConfig{Path: "/var/log/playback.log", MaxSizeMB: 25},
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Logger)
//
// Components derive their own logger with a "component" attribute:
//
//	log := slog.Default().With("component", "replay")
//
// # Redaction
//
// Request descriptors carry header maps that frequently hold bearer tokens,
// cookies and API keys. A Redactor masks those headers by name and masks
// credential-looking substrings in any other value:
//
//	r := logging.NewRedactor(nil)
//	safe := r.RedactHeaders(desc.Header)
package logging
