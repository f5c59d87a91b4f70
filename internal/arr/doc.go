// Package arr is the HTTP glue for Sonarr, Radarr and Lidarr. It reads tag
// lists, full library listings, and the paged wanted endpoints, and writes
// search commands and tag updates. Responses are treated as untrusted:
// numeric ids come in several shapes and are extracted defensively.
package arr
