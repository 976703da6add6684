// Package export turns calendar markup into PNG or PDF artifacts by driving
// an out-of-process rendering engine.
//
// A Pipeline acquires one engine per request through an Acquirer, wraps the
// markup with Assemble, renders it with a Dispatcher and always closes the
// engine before returning:
//
//	pipeline := export.NewPipeline(exportchromium.NewAcquirer())
//	artifact, err := pipeline.Export(ctx, export.RenderRequest{
//	    Markup: "<div>Event</div>",
//	    Mode:   export.ModePDF,
//	})
//
// Errors are *ExportError values classified by ErrorKind; UserMessage gives
// the text that is safe to show to callers.
//
// The engine strategy is picked per request from an EnvironmentProfile
// (local, constrained or remote). Wrap the pipeline with NewAdmission to cap
// the number of engines running at once.
package export
