package digest

// extractionPrompt instructs the backend to pull structured items out of a
// block of normalized email text. The items field is the contract the
// pipeline validates; field content is best-effort.
const extractionPrompt = `You are an email digest assistant. The user message contains the plain-text
bodies of several emails from one category, separated by horizontal rules.

Extract every distinct article, announcement, offer, or event into a JSON
object of the form:

{"items": [{"title": "...", "summary": "...", "keywords": ["..."], "link": "..."}]}

Rules:
- title: short and specific; reuse the item's own headline when present.
- summary: two or three sentences in plain language.
- keywords: three to six lowercase topical terms.
- link: the most relevant URL from the text, omit when there is none.
- Return ONLY the JSON object, no markdown, no commentary.`

// enrichmentPrompt asks the backend to deepen a small batch of already
// extracted items.
const enrichmentPrompt = `You are an email digest assistant. The user message is a JSON object with an
"items" array of previously extracted entries.

Return the same JSON structure with every item enriched:
- keep title unchanged so entries stay matchable,
- tighten the summary to at most two sentences,
- add an "enrichment" object with "category" (one or two words) and
  "priority" ("high", "normal", or "low").

Return ONLY the JSON object with the same number of items, no markdown.`
