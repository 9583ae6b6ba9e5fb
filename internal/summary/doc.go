// Package summary holds the immutable values the backend produces for a
// workflow: the dataset profile returned by an upload and the metrics returned
// by a training run.
//
// Preview records keep the column order the backend sent, because the display
// layer renders the first record's key order as the table header. Decoding
// rejects non-scalar cell values and duplicate column names so a malformed
// payload never reaches workflow state.
package summary
