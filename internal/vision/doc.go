// Package vision adapts gocv (OpenCV) to the pipeline's capture, transform,
// preview, and persistence capabilities.
//
// Every frame handled here is a *gocv.Mat. Functions that derive a new Mat
// return it to the caller, who must Close it; inputs are never closed.
package vision
