// Package whatsapp implements the WhatsApp Cloud API surfaces charla needs:
// media metadata/download, outbound text delivery, webhook payload parsing,
// webhook signature verification, and reply styling.
package whatsapp
