package postgres

import (
	"github.com/tarsy-labs/queryweave/pkg/feedback"
	"github.com/tarsy-labs/queryweave/pkg/orchestrator"
	"github.com/tarsy-labs/queryweave/pkg/review"
	"github.com/tarsy-labs/queryweave/pkg/schemaexpert"
)

// These compile-time assertions catch the kind of repository/consumer
// interface drift a signature change (e.g. Decide's bool return) would
// otherwise only surface as a wiring failure in cmd/queryweaved/main.go.
// Listed once per consumer rather than per method, so a future interface
// change fails here instead of silently compiling against the wrong repo.
var (
	_ review.QueueRepo              = (*ReviewRepo)(nil)
	_ review.ExampleRepo            = (*ExampleRepo)(nil)
	_ feedback.ExampleRepo          = (*ExampleRepo)(nil)
	_ orchestrator.ExampleRepo      = (*ExampleRepo)(nil)
	_ orchestrator.AnnotationRepo   = (*AnnotationRepo)(nil)
	_ schemaexpert.AnnotationSource = (*AnnotationRepo)(nil)
)
