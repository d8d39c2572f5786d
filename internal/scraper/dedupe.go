package scraper

// Merge combines listing batches into one list with unique URLs. Listings
// without a URL are dropped. When a URL repeats, the later content wins
// but the position of its first appearance is kept.
func Merge(batches ...[]RawJob) []RawJob {
	index := make(map[string]int)
	var out []RawJob
	for _, batch := range batches {
		for _, job := range batch {
			if job.URL == "" {
				continue
			}
			if i, ok := index[job.URL]; ok {
				out[i] = job
				continue
			}
			index[job.URL] = len(out)
			out = append(out, job)
		}
	}
	return out
}
