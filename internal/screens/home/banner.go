package home

const banner = `  ___  ___  _       ___  ___  ___  ___
 / __||   \| |     | _ \| _ \| __|| _ \
| (__ | |) | |__   |  _/|   /| _| |  _/
 \___||___/|____|  |_|  |_|_\|___||_|`
