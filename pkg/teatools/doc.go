// Package teatools registers the Tea agent's tools: a community review
// search backed by the local store and a web search backed by Serper.
// Review queries go through a lightweight keyword extractor that pulls
// category, location, and professional-name hints out of free text.
package teatools
