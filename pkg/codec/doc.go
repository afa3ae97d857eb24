/*
Package codec is the serialization safety layer between workflow state and
the checkpoint stores.

ToDurable reduces any state value, including opaque messages, to plain nested
maps, lists and primitives. FromDurable restores typed state from that form.
Force is the lenient variant used for the single retry of a failed save.
*/
package codec
