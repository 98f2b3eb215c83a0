package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		Convey("When creating with a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then the manager should be initialized", func() {
				So(manager, ShouldNotBeNil)
				So(manager.editsTotal, ShouldNotBeNil)
				So(manager.gateConsumes, ShouldNotBeNil)
				So(manager.httpRequests, ShouldNotBeNil)
				So(manager.writebackQueueSize, ShouldNotBeNil)
			})
		})

		Convey("When applying custom namespace and subsystem", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace("custom"),
				WithSubsystem("edits"),
			)

			Convey("Then it should carry the custom names", func() {
				So(manager.namespace, ShouldEqual, "custom")
				So(manager.subsystem, ShouldEqual, "edits")
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording through package helpers", func() {
			// Must not panic; the global manager is created in init.
			RecordEdit("pitch")
			RecordEditRejected("merge", "cooldown")
			RecordMergedNotes(2)
			RecordGateConsume()
			RecordGateConsumeConflict()
			UpdateNotesTotal(64)
			UpdateMeasuresTotal(16)
			RecordHTTPRequest("notes_pitch", "PATCH", "200")
			RecordHTTPRequestDuration("notes_pitch", "PATCH", "200", 1.5)
			RecordWritebackEnqueue()
			RecordErrorByComponent("gate", "not_available")

			Convey("Then the registry should gather without error", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
