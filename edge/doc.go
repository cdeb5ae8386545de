/*
 Package edge provides mechanisms for message passing along edges.
 Several composable interfaces are defined to aid in implementing a node which consumes messages from an edge.

 A record stream on an edge is a FormatMessage announcing the schema,
 followed by any number of RecordMessages and a final EndOfStreamMessage.
*/
package edge
