/*
go-posture monitors a single user's posture from a live camera feed.  Each
frame is letterboxed into a MoveNet single pose model input tensor, inference
is run on the Rockchip NPU via go-rknnlite, and the eye keypoints are compared
against a baseline calibrated while the user sits upright.  A debounced state
machine turns the per frame deviation into a GOOD/BAD posture signal with a
continuous intensity suitable for fading an on screen reminder in and out.

The Pipeline is synchronous, processing one frame at a time.  Use a
source.Slot to hand frames from a capture goroutine to the pipeline so that
slow inference drops stale frames rather than building a backlog.

See example code and usage in the examples subdirectory.
*/
package posture
