// Package source loads the fixed audio asset played by the flood client.
// It decodes WAV, MP3 and Ogg Vorbis containers into a PCM S16LE buffer
// and exposes the frame-aligned chunking used by stream write callbacks.
package source
