/*
Package coltable contains a compressed columnar storage format for
fixed-width numeric arrays. Values are encoded by the codec kernels of the
kernels package, which exchange memory with the engine through the
boundary package.

Data Structure Documentation

File

A file contains a series of 64-byte aligned data buffers followed by a
schema section, a footer section and a fixed-size postscript.

    File layout:
    +----------+---------+----------+----------------+----------------+------------------------+
    | buffer 1 |   ...   | buffer n | schema section | footer section | postscript (24 bytes)  |
    +----------+---------+----------+----------------+----------------+------------------------+

    Postscript:
    +-------------------------+-------------------------+------------------+
    | schema offset (8 bytes) | footer offset (8 bytes) |  magic (8 bytes) |
    +-------------------------+-------------------------+------------------+

Sections

The schema and the footer are framed sections which are located through
the postscript independently of each other. A section that starts at the
postscript is empty.

    Section:
    +-----------------------+--------+---------------------------+
    | body length (varint)  |  body  | blake3 checksum (8 bytes) |
    +-----------------------+--------+---------------------------+

    Footer body:
    +--------------------+--------------------+---------------------------+
    | version (1 byte)   | row count (varint) | root layout node (opt.)   |
    +--------------------+--------------------+---------------------------+

The schema body is a JSON document listing the fields.

Layout

The layout is a tree of nodes. Each node names an encoding, the byte ranges
of its buffers within the file, its children and opaque metadata. All
integers are minimal varints.

    Layout node:
    +------------------+-----------------------+----------------------------------+-----------------------+-----------+-------------------------+----------+
    | encoding (varint)| num buffers (varint)  | begin, length (varint) per buffer| num children (varint) | children  | metadata len (varint)   | metadata |
    +------------------+-----------------------+----------------------------------+-----------------------+-----------+-------------------------+----------+

Files written by Writer have a Struct root with one Chunked child per
column. Each chunk is a leaf node, or an ALP node with a values and an
exceptions child.
*/
package coltable
