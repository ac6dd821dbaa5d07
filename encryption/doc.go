// Package encryption seals credential records before they reach persistent
// storage. Both AES-256-GCM and ChaCha20-Poly1305 are supported; the key
// string is hashed with SHA-256 to the 32 bytes either cipher needs.
//
//	c, err := encryption.New(os.Getenv("APICLIENT_CREDENTIALS_KEY"))
//	sealed, err := c.Seal(record, []byte("apiclient.credentials"))
package encryption
