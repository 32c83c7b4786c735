package anthropic

// BuildCachedSystemBlocks wraps a system prompt in a single block with a
// 1-hour cache breakpoint. The classification rubric is identical across
// every chunk of a run, so the first request warms the cache and the rest
// read from it.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}
