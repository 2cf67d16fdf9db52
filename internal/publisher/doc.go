// Package publisher implements the resilient batch delivery pipeline.
//
// Batches enter through Enqueue, which never blocks: the intake queue is
// unbounded so reading synthesis is never throttled by broker health. A
// single dispatcher goroutine drains the queue in FIFO order with a fixed
// concurrency bound. Each delivery retries with exponential backoff and
// lazily reconnects the transport; a batch that exhausts its retries is
// dropped and logged, never requeued.
//
// The Transport interface decouples the pipeline from the broker. The
// production implementation is MQTTTransport over the infrastructure MQTT
// client; tests substitute in-memory fakes.
package publisher
