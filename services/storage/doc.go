/*
The storage package provides a key/value based interface for storing kflow metadata such as rule sets.

The usage patterns for this storage layer are typical create/replace/delete/get/list operations.
Objects are serialized and stored as the value, updating a single field of an object
retrieves the entire object and stores it again.
This is acceptable since rule sets are small and rarely modified.

A BoltDB backed implementation and an in memory implementation for tests are provided.
*/
package storage
